// Package hasher computes SHA256 digests and sniffs the content type of
// submitted documents.
package hasher

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIMEPDF is the content type accepted for locking.
const MIMEPDF = "application/pdf"

// ErrNotPDF is returned when content does not sniff as a PDF.
var ErrNotPDF = errors.New("not a PDF document")

// Metadata holds computed file metadata.
type Metadata struct {
	Hash      string // hex-encoded SHA256
	Size      int64  // bytes
	MIME      string
	Extension string // from the name when given, else from the content
}

// Inspect hashes data and detects its content type. name is only used for
// the extension and may be empty.
func Inspect(data []byte, name string) (*Metadata, error) {
	h := sha256.New()
	size, err := io.Copy(h, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("hasher: copy: %w", err)
	}

	mt := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = mt.Extension()
	}
	return &Metadata{
		Hash:      hex.EncodeToString(h.Sum(nil)),
		Size:      size,
		MIME:      mt.String(),
		Extension: ext,
	}, nil
}

// InspectPDF is Inspect that rejects anything but a PDF.
func InspectPDF(data []byte, name string) (*Metadata, error) {
	meta, err := Inspect(data, name)
	if err != nil {
		return nil, err
	}
	if !meta.IsPDF() {
		return meta, fmt.Errorf("%w: detected %s", ErrNotPDF, meta.MIME)
	}
	return meta, nil
}

// ReadPDF reads a file from disk and checks that it is a PDF.
func ReadPDF(path string) ([]byte, *Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("hasher: read file: %w", err)
	}
	meta, err := InspectPDF(data, path)
	if err != nil {
		return nil, nil, err
	}
	return data, meta, nil
}

// IsPDF reports whether the sniffed type is PDF.
func (m *Metadata) IsPDF() bool {
	return mimetype.EqualsAny(m.MIME, MIMEPDF)
}
