package imageenc

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an output image format selected by the user. "jpg" and "jpeg"
// encode identically but keep their own file extension.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultJPEGQuality is used when Options.JPEGQuality is unset
const DefaultJPEGQuality = 90

// Options controls encoding behaviour
type Options struct {
	JPEGQuality int // 1-100, only used for jpg/jpeg
}

// ParseFormat validates a user-supplied format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatJPG:
		return FormatJPG, nil
	case FormatJPEG:
		return FormatJPEG, nil
	case FormatBMP:
		return FormatBMP, nil
	case FormatTIFF:
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format: %q", s)
	}
}

// Ext returns the file extension for the format, including the dot
func (f Format) Ext() string {
	return "." + string(f)
}

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, format Format, opts Options) error {
	switch format {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatJPG, FormatJPEG:
		quality := opts.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return fmt.Errorf("unsupported image format: %q", format)
	}
}

// PageFileName returns the output file name for a one-based page number,
// eg page_1.png
func PageFileName(pageNum int, format Format) string {
	return fmt.Sprintf("page_%d%s", pageNum, format.Ext())
}
