// Package pdfinfo inspects rendered documents without a full PDF toolkit.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for input without a PDF header.
var ErrNotPDF = errors.New("not a PDF document")

// magic starts every PDF document.
var magic = []byte("%PDF-")

// Info describes a parsed document.
type Info struct {
	Pages int
	// Width and Height of the first page in points, 0 when the page does
	// not carry its own MediaBox.
	Width  float64
	Height float64
}

// Landscape reports whether the first page is wider than tall.
func (i Info) Landscape() bool {
	return i.Width > i.Height && i.Height > 0
}

// HasMagic reports whether b starts with the PDF header.
func HasMagic(b []byte) bool {
	return bytes.HasPrefix(b, magic)
}

// Inspect parses b and reports its page count and first page size.
// The parser panics on some malformed inputs; that becomes an error.
func Inspect(b []byte) (info Info, err error) {
	if !HasMagic(b) {
		return Info{}, ErrNotPDF
	}

	defer func() {
		if rec := recover(); rec != nil {
			info, err = Info{}, fmt.Errorf("parsing PDF: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return Info{}, fmt.Errorf("parsing PDF: %w", err)
	}

	info.Pages = r.NumPage()
	if info.Pages > 0 {
		box := r.Page(1).V.Key("MediaBox")
		if box.Len() == 4 {
			info.Width = box.Index(2).Float64() - box.Index(0).Float64()
			info.Height = box.Index(3).Float64() - box.Index(1).Float64()
		}
	}
	return info, nil
}

// PageCount returns the number of pages in b.
func PageCount(b []byte) (int, error) {
	info, err := Inspect(b)
	if err != nil {
		return 0, err
	}
	return info.Pages, nil
}
