package locker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":      "report_locked.pdf",
		"REPORT.PDF":      "REPORT_locked.pdf",
		"scan.Pdf":        "scan_locked.pdf",
		"notes":           "notes_locked.pdf",
		"archive.pdf.pdf": "archive.pdf_locked.pdf",
		".pdf":            "_locked.pdf",
		"":                "document_locked.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, OutputName(in), in)
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "contracts/2024/lease_locked.pdf", OutputPath("contracts/2024/lease.pdf"))
	assert.Equal(t, "a_locked.pdf", OutputPath("a.pdf"))
	assert.Equal(t, "dir/sub/b_locked.pdf", OutputPath(`dir\sub\b.PDF`))
}
