package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtiwari1/gopherlock/internal/pdftest"
)

func TestInspectPDF(t *testing.T) {
	doc := pdftest.Document(1)
	sum := sha256.Sum256(doc)

	meta, err := InspectPDF(doc, "Report.PDF")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.Hash)
	assert.Equal(t, int64(len(doc)), meta.Size)
	assert.Equal(t, MIMEPDF, meta.MIME)
	assert.Equal(t, ".pdf", meta.Extension)
	assert.True(t, meta.IsPDF())
}

func TestInspectPDFRejectsOtherContent(t *testing.T) {
	meta, err := InspectPDF([]byte("just some text\n"), "notes.pdf")
	require.ErrorIs(t, err, ErrNotPDF)
	assert.False(t, meta.IsPDF())
}

func TestInspectExtensionFromContent(t *testing.T) {
	meta, err := Inspect(pdftest.Document(1), "")
	require.NoError(t, err)
	assert.Equal(t, ".pdf", meta.Extension)
}

func TestReadPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.Document(2), 0o644))

	data, meta, err := ReadPDF(path)
	require.NoError(t, err)
	assert.Len(t, data, int(meta.Size))

	_, _, err = ReadPDF(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}
