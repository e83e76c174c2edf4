// Package document converts office documents (Word, Excel) into a flat
// plaintext representation for PII detection.
package document

import (
	"errors"
	"fmt"
)

// FileType discriminates the supported source document formats.
type FileType string

const (
	// TypeWord is a zip+XML Word document (.docx)
	TypeWord FileType = "word"
	// TypeExcel is a zip+XML Excel workbook (.xlsx)
	TypeExcel FileType = "excel"
)

var (
	// ErrUnsupportedFormat is returned when the declared file type is
	// neither word nor excel
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtraction is returned when the underlying container cannot be
	// opened or parsed
	ErrExtraction = errors.New("extraction failed")
)

// ParseFileType validates a caller-supplied file type discriminator
func ParseFileType(s string) (FileType, error) {
	switch FileType(s) {
	case TypeWord:
		return TypeWord, nil
	case TypeExcel:
		return TypeExcel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Extract produces a single newline-joined plaintext string from the
// document at path.
//
// Word documents yield one line per paragraph, in document order. Excel
// workbooks yield one line per row, sheets in workbook order, with non-empty
// cell values joined by single spaces.
func Extract(path string, typ FileType) (string, error) {
	switch typ {
	case TypeWord:
		return extractWord(path)
	case TypeExcel:
		return extractExcel(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, typ)
	}
}
