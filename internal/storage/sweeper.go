package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetention is how long uploaded and locked documents are kept.
const DefaultRetention = time.Hour

// Sweeper deletes objects older than MaxAge under the configured prefixes.
type Sweeper struct {
	Store    Store
	Prefixes []string
	MaxAge   time.Duration
	Logger   *slog.Logger

	now func() time.Time
}

// NewSweeper returns a sweeper for the uploads/ and locked/ prefixes.
func NewSweeper(store Store, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	return &Sweeper{
		Store:    store,
		Prefixes: []string{UploadsPrefix, LockedPrefix},
		MaxAge:   maxAge,
		Logger:   logger,
		now:      time.Now,
	}
}

// Sweep runs one pass and returns the number of deleted objects. A failing
// prefix does not stop the others; the first error is returned.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	cutoff := now().Add(-s.MaxAge)

	deleted := 0
	var firstErr error
	for _, prefix := range s.Prefixes {
		objs, err := s.Store.List(ctx, prefix)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep list %s: %w", prefix, err)
			}
			continue
		}

		var stale []string
		for _, o := range objs {
			if o.LastModified.Before(cutoff) {
				stale = append(stale, o.Key)
			}
		}
		if len(stale) == 0 {
			continue
		}
		if err := s.Store.Delete(ctx, stale...); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep delete %s: %w", prefix, err)
			}
			continue
		}
		deleted += len(stale)
	}

	if s.Logger != nil {
		s.Logger.Info("retention sweep finished",
			slog.Int("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return deleted, firstErr
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && s.Logger != nil {
				s.Logger.Error("retention sweep", slog.String("error", err.Error()))
			}
		}
	}
}
