// Package repository persists file records so lock results outlive the
// in-memory batch that produced them.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mtiwari1/gopherlock/internal/batch"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is a small, focused interface for file record persistence.
// Implementations must honour the supplied context for cancellation and timeouts.
type Repository interface {
	// Save inserts the record or replaces the stored copy with the same id.
	Save(ctx context.Context, rec batch.FileRecord) error

	// Get retrieves a record by id.
	Get(ctx context.Context, id string) (*batch.FileRecord, error)

	// ListByBatch returns the records of a batch, oldest first.
	ListByBatch(ctx context.Context, batchID string) ([]batch.FileRecord, error)

	// Delete removes records by id. Missing ids are not an error.
	Delete(ctx context.Context, ids ...string) error

	// DeleteOlderThan removes records last updated before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
