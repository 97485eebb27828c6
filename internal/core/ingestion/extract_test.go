package ingestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextSupportedTypes(t *testing.T) {
	for _, path := range []string{"a/b/doc.txt", "doc.md", "notes.markdown", "upper/DOC.TXT"} {
		text, err := ExtractText(path, []byte("hello world"))
		require.NoError(t, err, path)
		assert.Equal(t, "hello world", text)
	}
}

func TestExtractTextUnsupportedType(t *testing.T) {
	_, err := ExtractText("report.pdf", []byte("%PDF-1.4"))
	require.Error(t, err)

	var ufe *UnsupportedFileTypeError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, ".pdf", ufe.Ext)
	assert.Equal(t, "unsupported file type: .pdf", err.Error())
}

func TestExtractTextNoExtension(t *testing.T) {
	_, err := ExtractText("company-id/doc-id/README", nil)
	require.Error(t, err)

	var ufe *UnsupportedFileTypeError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, "", ufe.Ext)
	assert.Equal(t, "unsupported file type: none", err.Error())
}
