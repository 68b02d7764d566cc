package extract

import (
	"path/filepath"
	"strings"
)

// Kind identifies how a file's text is obtained.
type Kind int

const (
	// KindUnknown is any file docrag cannot read.
	KindUnknown Kind = iota
	KindText
	KindMarkdown
	KindPDF
	// KindOCRPDF is a scanned PDF read through the external OCR command.
	KindOCRPDF
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMarkdown:
		return "markdown"
	case KindPDF:
		return "pdf"
	case KindOCRPDF:
		return "ocr-pdf"
	default:
		return "unknown"
	}
}

// KindFor selects the extraction kind from the file name. Matching is
// case-insensitive.
func KindFor(path string) Kind {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".scan.pdf") || strings.HasSuffix(name, ".ocr.pdf") {
		return KindOCRPDF
	}
	switch filepath.Ext(name) {
	case ".txt", ".text":
		return KindText
	case ".md", ".markdown":
		return KindMarkdown
	case ".pdf":
		return KindPDF
	default:
		return KindUnknown
	}
}

// Supported reports whether path has an extractable kind.
func Supported(path string) bool {
	return KindFor(path) != KindUnknown
}
