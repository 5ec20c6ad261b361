package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mtiwari1/gopherlock/internal/batch"
)

// MemoryRepo keeps records in a map. Used by tests and the CLI.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]batch.FileRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]batch.FileRecord)}
}

func (r *MemoryRepo) Save(ctx context.Context, rec batch.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*batch.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepo) ListByBatch(ctx context.Context, batchID string) ([]batch.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []batch.FileRecord
	for _, rec := range r.records {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.records, id)
	}
	return nil
}

func (r *MemoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rec := range r.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) Ping(ctx context.Context) error { return ctx.Err() }

func (r *MemoryRepo) Close() error { return nil }

func sortRecords(recs []batch.FileRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
