// Package export renders the couple's memory book (dated plans, reasons
// and notes) as PDF or DOCX.
package export

import "errors"

// Format selects the memory book output.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Result is a rendered memory book ready to download.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing means no Chrome or Chromium binary was found.
	ErrPDFDependencyMissing = errors.New("pdf export needs chromium")
	// ErrDOCXDependencyMissing means pandoc is not on PATH.
	ErrDOCXDependencyMissing = errors.New("docx export needs pandoc")
)
