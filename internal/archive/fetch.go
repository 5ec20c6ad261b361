package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

// Fetcher retrieves the locked bytes of a successful record.
type Fetcher interface {
	Fetch(ctx context.Context, r batch.FileRecord) ([]byte, error)
}

var errNoHandle = errors.New("record has no result handle")

// StoreFetcher reads results from storage by their result key.
type StoreFetcher struct {
	Store storage.Store
}

func (f StoreFetcher) Fetch(ctx context.Context, r batch.FileRecord) ([]byte, error) {
	if r.ResultKey == "" {
		return nil, errNoHandle
	}
	return f.Store.Get(ctx, r.ResultKey)
}

// DefaultHTTPTimeout bounds a single HTTP retrieval.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPFetcher downloads results from their retrieval URL.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with a bounded client.
func NewHTTPFetcher() HTTPFetcher {
	return HTTPFetcher{Client: &http.Client{Timeout: DefaultHTTPTimeout}}
}

func (f HTTPFetcher) Fetch(ctx context.Context, r batch.FileRecord) ([]byte, error) {
	if r.ResultURL == "" {
		return nil, errNoHandle
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ResultURL, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download %s: unexpected status %s", r.Name, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FallbackFetcher tries each fetcher in order and returns the first success.
type FallbackFetcher []Fetcher

func (f FallbackFetcher) Fetch(ctx context.Context, r batch.FileRecord) ([]byte, error) {
	var errs []error
	for _, fetcher := range f {
		data, err := fetcher.Fetch(ctx, r)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errNoHandle
	}
	return nil, errors.Join(errs...)
}
