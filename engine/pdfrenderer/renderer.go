package pdfrenderer

import (
	"fmt"
	"image"
)

// Renderer defines the interface for opening PDF files for rasterization
type Renderer interface {
	// Open loads a PDF file and returns a Document for page-by-page rendering
	Open(filename string) (Document, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// Document is an open PDF. Pages are rendered one at a time so callers can
// report progress and stop between pages.
type Document interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// RenderPage rasterizes the page at the given zero-based index at the
	// given DPI
	RenderPage(index int, dpi int) (image.Image, error)

	// Close releases the document
	Close() error
}

// NewRenderer creates a PDF renderer for the named backend. "fitz" uses
// go-fitz (requires CGo and MuPDF), "pdfium" uses go-pdfium over WebAssembly
// (pure Go, no CGo).
func NewRenderer(backend string) (Renderer, error) {
	switch backend {
	case "", "fitz":
		return NewFitzRenderer()
	case "pdfium":
		return NewPDFiumRenderer()
	default:
		return nil, fmt.Errorf("unknown PDF renderer backend: %s", backend)
	}
}
