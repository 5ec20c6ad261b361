package locker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mtiwari1/gopherlock/internal/permission"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

// DefaultURLTTL is the lifetime of a retrieval URL for a locked document.
const DefaultURLTTL = time.Hour

// Service is the storage-backed lock call: it fetches the source, locks it,
// stores the result and issues a retrieval URL.
type Service struct {
	store  storage.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. A non-positive ttl selects DefaultURLTTL.
func NewService(store storage.Store, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ttl: ttl, logger: logger, now: time.Now}
}

// Lock runs one lock call. Validation errors are returned before any
// storage access.
func (s *Service) Lock(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	restrictions, _ := permission.ParseRestrictions(req.Restrictions)
	method, _ := ParseMethod(req.EncryptionMethod)
	mask := permission.ComputeMask(restrictions...)

	logger := s.logger.With(
		slog.String("storage_path", req.StoragePath),
		slog.String("method", string(method)),
	)

	start := s.now()
	src, err := s.store.Get(ctx, req.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}

	locked, err := Lock(src, req.OpenPassword, req.PermissionPassword, mask, method)
	if err != nil {
		logger.Error("lock failed", slog.String("error", err.Error()))
		return nil, err
	}

	name := req.FileName
	if name == "" {
		name = "document"
	}
	outputName := OutputName(name)
	key := storage.LockedKey(outputName, s.now())

	if err := s.store.Put(ctx, key, locked, "application/pdf"); err != nil {
		return nil, fmt.Errorf("store locked file: %w", err)
	}
	url, err := s.store.SignedURL(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue download link: %w", err)
	}

	logger.Info("document locked",
		slog.String("output", key),
		slog.String("permissions", mask.String()),
		slog.String("in_size", humanize.Bytes(uint64(len(src)))),
		slog.String("out_size", humanize.Bytes(uint64(len(locked)))),
		slog.Duration("latency", s.now().Sub(start)),
	)

	return &Response{SignedURL: url, FileName: outputName, StoragePath: key}, nil
}
