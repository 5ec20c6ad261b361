// Package archive packages the successful results of a batch for download:
// a single locked PDF as-is, several as one zip.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/locker"
)

// DefaultArchiveName is the file name of a multi-file download.
const DefaultArchiveName = "locked_pdfs.zip"

const (
	contentTypePDF = "application/pdf"
	contentTypeZip = "application/zip"
)

var (
	// ErrNoResults is returned when no record has been locked successfully.
	ErrNoResults = errors.New("no successfully locked files")

	// ErrNothingRetrieved is returned when every result failed to fetch.
	ErrNothingRetrieved = errors.New("no locked files could be retrieved")
)

// Output is a packaged download.
type Output struct {
	Name        string
	ContentType string
	Data        []byte
	// Entries is the number of files in Data; 1 for a bare PDF.
	Entries int
}

// Packager builds download outputs.
type Packager struct {
	fetcher     Fetcher
	logger      *slog.Logger
	archiveName string
	now         func() time.Time
}

// New creates a Packager that retrieves results through f.
func New(f Fetcher, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{fetcher: f, logger: logger, archiveName: DefaultArchiveName, now: time.Now}
}

// Package selects the successful records and packages them. Records in any
// other status are ignored.
func (p *Packager) Package(ctx context.Context, records []batch.FileRecord) (*Output, error) {
	var ok []batch.FileRecord
	for _, r := range records {
		if r.Status == batch.StatusSuccess {
			ok = append(ok, r)
		}
	}

	switch len(ok) {
	case 0:
		return nil, ErrNoResults
	case 1:
		return p.single(ctx, ok[0])
	}
	return p.bundle(ctx, ok)
}

func (p *Packager) single(ctx context.Context, r batch.FileRecord) (*Output, error) {
	data, err := p.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.Name, err)
	}
	return &Output{
		Name:        outputName(r),
		ContentType: contentTypePDF,
		Data:        data,
		Entries:     1,
	}, nil
}

func (p *Packager) bundle(ctx context.Context, records []batch.FileRecord) (*Output, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]bool)
	written := 0

	for _, r := range records {
		data, err := p.fetcher.Fetch(ctx, r)
		if err != nil {
			p.logger.Warn("skipping file in archive",
				slog.String("file_id", r.ID),
				slog.String("file", r.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		name := uniqueName(seen, entryPath(r))
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: p.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", name, err)
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if written == 0 {
		return nil, ErrNothingRetrieved
	}

	p.logger.Info("archive built",
		slog.Int("entries", written),
		slog.Int("skipped", len(records)-written),
		slog.String("size", humanize.Bytes(uint64(buf.Len()))),
	)
	return &Output{
		Name:        p.archiveName,
		ContentType: contentTypeZip,
		Data:        buf.Bytes(),
		Entries:     written,
	}, nil
}

func outputName(r batch.FileRecord) string {
	if r.OutputName != "" {
		return r.OutputName
	}
	return locker.OutputName(r.Name)
}

func entryPath(r batch.FileRecord) string {
	rel := r.RelativePath
	if rel == "" {
		rel = r.Name
	}
	p := locker.OutputPath(rel)
	return strings.TrimLeft(path.Clean("/"+p), "/")
}

// uniqueName appends " (n)" before the extension of names already used,
// starting at 1.
func uniqueName(seen map[string]bool, name string) string {
	if !seen[name] {
		seen[name] = true
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
