package config

import (
	"testing"
)

func TestClampDPI(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"below minimum", 10, MinDPI},
		{"at minimum", 72, 72},
		{"typical", 300, 300},
		{"at maximum", 600, 600},
		{"above maximum", 1200, MaxDPI},
		{"zero", 0, MinDPI},
		{"negative", -300, MinDPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampDPI(tt.in)
			if got != tt.want {
				t.Errorf("ClampDPI(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSuggestOutputFolder(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain pdf", "report.pdf", "report_images"},
		{"path stripped", "/home/user/docs/scan.pdf", "scan_images"},
		{"no extension", "notes", "notes_images"},
		{"dotted name", "annual.report.2025.pdf", "annual.report.2025_images"},
		{"empty", "", "pdf_images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestOutputFolder(tt.in)
			if got != tt.want {
				t.Errorf("SuggestOutputFolder(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PDFRASTER_TEST_STR", "value")
	t.Setenv("PDFRASTER_TEST_INT", "42")
	t.Setenv("PDFRASTER_TEST_BOOL", "true")
	t.Setenv("PDFRASTER_TEST_BAD_INT", "not-a-number")

	if got := getEnv("PDFRASTER_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv set var = %q, want %q", got, "value")
	}
	if got := getEnv("PDFRASTER_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv missing var = %q, want fallback", got)
	}
	if got := getEnvInt("PDFRASTER_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	if got := getEnvInt("PDFRASTER_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt bad value = %d, want default 7", got)
	}
	if got := getEnvBool("PDFRASTER_TEST_BOOL", false); got != true {
		t.Errorf("getEnvBool = %v, want true", got)
	}
	if got := getEnvBool("PDFRASTER_TEST_MISSING", true); got != true {
		t.Errorf("getEnvBool missing var = %v, want default true", got)
	}
}
