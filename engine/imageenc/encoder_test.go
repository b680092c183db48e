package imageenc

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"testing"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: uint8((x * y) % 256), A: 255})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Format
		wantErr bool
	}{
		{"png", "png", FormatPNG, false},
		{"jpg", "jpg", FormatJPG, false},
		{"jpeg kept distinct from jpg", "jpeg", FormatJPEG, false},
		{"bmp", "bmp", FormatBMP, false},
		{"tiff", "tiff", FormatTIFF, false},
		{"uppercase", "PNG", FormatPNG, false},
		{"whitespace", " tiff ", FormatTIFF, false},
		{"gif rejected", "gif", "", true},
		{"empty rejected", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseFormat(%q) expected error, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatExt(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatPNG, ".png"},
		{FormatJPG, ".jpg"},
		{FormatJPEG, ".jpeg"},
		{FormatBMP, ".bmp"},
		{FormatTIFF, ".tiff"},
	}

	for _, tt := range tests {
		if got := tt.format.Ext(); got != tt.want {
			t.Errorf("Ext(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestPageFileName(t *testing.T) {
	if got := PageFileName(1, FormatPNG); got != "page_1.png" {
		t.Errorf("PageFileName(1, png) = %q, want page_1.png", got)
	}
	if got := PageFileName(42, FormatJPEG); got != "page_42.jpeg" {
		t.Errorf("PageFileName(42, jpeg) = %q, want page_42.jpeg", got)
	}
}

func TestEncodeDecodesBack(t *testing.T) {
	src := testImage()

	formats := []struct {
		format   Format
		wantType string // name registered with image.RegisterFormat
	}{
		{FormatPNG, "png"},
		{FormatJPG, "jpeg"},
		{FormatJPEG, "jpeg"},
		{FormatBMP, "bmp"},
		{FormatTIFF, "tiff"},
	}

	for _, tt := range formats {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, src, tt.format, Options{}); err != nil {
				t.Fatalf("Encode %s failed: %v", tt.format, err)
			}
			if buf.Len() == 0 {
				t.Fatalf("Encode %s wrote no data", tt.format)
			}

			decoded, typeName, err := image.Decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("Decoding %s output failed: %v", tt.format, err)
			}
			if typeName != tt.wantType {
				t.Errorf("Decoded type = %q, want %q", typeName, tt.wantType)
			}
			if decoded.Bounds() != src.Bounds() {
				t.Errorf("Decoded bounds = %v, want %v", decoded.Bounds(), src.Bounds())
			}
		})
	}
}

func TestEncodeRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(), Format("webp"), Options{}); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestJPEGQualityAffectsSize(t *testing.T) {
	src := testImage()

	var high, low bytes.Buffer
	if err := Encode(&high, src, FormatJPEG, Options{JPEGQuality: 95}); err != nil {
		t.Fatalf("Encode quality 95 failed: %v", err)
	}
	if err := Encode(&low, src, FormatJPEG, Options{JPEGQuality: 10}); err != nil {
		t.Fatalf("Encode quality 10 failed: %v", err)
	}

	if low.Len() >= high.Len() {
		t.Errorf("Expected quality 10 output (%d bytes) smaller than quality 95 (%d bytes)", low.Len(), high.Len())
	}
}
