package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UnsupportedFileTypeError is terminal for a document: retrying the job will
// never succeed, so the worker marks the document failed.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "none"
	}
	return fmt.Sprintf("unsupported file type: %s", ext)
}

// ExtractText decodes raw object bytes into plain text, keyed by the file
// extension. Only plain text and markdown are supported.
func ExtractText(filePath string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".txt", ".md", ".markdown":
		return string(data), nil
	default:
		return "", &UnsupportedFileTypeError{Ext: ext}
	}
}
