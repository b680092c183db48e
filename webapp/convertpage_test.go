package webapp

import (
	"testing"
)

func TestSuggestOutputName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{
			name:     "plain pdf",
			fileName: "report.pdf",
			want:     "report_images",
		},
		{
			name:     "name with dots",
			fileName: "annual.report.2024.pdf",
			want:     "annual.report.2024_images",
		},
		{
			name:     "no extension",
			fileName: "scan",
			want:     "scan_images",
		},
		{
			name:     "empty name",
			fileName: "",
			want:     "pdf_images",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suggestOutputName(tt.fileName); got != tt.want {
				t.Errorf("suggestOutputName(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestClampDPI(t *testing.T) {
	tests := []struct {
		name string
		dpi  int
		want int
	}{
		{name: "below minimum", dpi: 10, want: 72},
		{name: "at minimum", dpi: 72, want: 72},
		{name: "typical", dpi: 300, want: 300},
		{name: "at maximum", dpi: 600, want: 600},
		{name: "above maximum", dpi: 1200, want: 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampDPI(tt.dpi); got != tt.want {
				t.Errorf("clampDPI(%d) = %d, want %d", tt.dpi, got, tt.want)
			}
		})
	}
}

func TestFormatConversionSummary(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{
			name:   "all pages converted",
			result: `{"pagesConverted":12,"pagesTotal":12,"pageErrors":0}`,
			want:   "Converted 12 of 12 pages",
		},
		{
			name:   "one save error",
			result: `{"pagesConverted":4,"pagesTotal":5,"pageErrors":1}`,
			want:   "Converted 4 of 5 pages, 1 page could not be saved",
		},
		{
			name:   "several save errors",
			result: `{"pagesConverted":2,"pagesTotal":5,"pageErrors":3}`,
			want:   "Converted 2 of 5 pages, 3 pages could not be saved",
		},
		{
			name:   "not json",
			result: "done",
			want:   "Conversion completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatConversionSummary(tt.result); got != tt.want {
				t.Errorf("formatConversionSummary(%q) = %q, want %q", tt.result, got, tt.want)
			}
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want string
	}{
		{name: "bytes", size: 512, want: "512 B"},
		{name: "kilobytes", size: 2048, want: "2.0 KB"},
		{name: "megabytes", size: 3 << 20, want: "3.0 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatFileSize(tt.size); got != tt.want {
				t.Errorf("formatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
			}
		})
	}
}
