package batch

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrBatchNotFound is returned for unknown batch ids.
var ErrBatchNotFound = errors.New("batch not found")

// Registry holds the batches of a process.
type Registry struct {
	locker Locker
	opts   []Option
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	batches map[string]*Batch
}

// NewRegistry creates a registry whose batches lock through l and are built
// with opts.
func NewRegistry(l Locker, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		locker:  l,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		batches: make(map[string]*Batch),
	}
}

// Create makes and registers a new batch. Extra options are applied after
// the registry defaults.
func (r *Registry) Create(extra ...Option) *Batch {
	opts := append([]Option{WithLogger(r.logger)}, r.opts...)
	opts = append(opts, extra...)
	b := New(r.locker, opts...)

	r.mu.Lock()
	r.batches[b.ID()] = b
	r.mu.Unlock()
	return b
}

// Get returns the batch with the given id.
func (r *Registry) Get(id string) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return b, nil
}

// Delete clears the batch and drops it. A batch with an active run is kept
// and ErrRunActive is returned.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	if err := b.Clear(); err != nil {
		return err
	}
	delete(r.batches, id)
	return nil
}

// List returns the registered batches, oldest first.
func (r *Registry) List() []*Batch {
	r.mu.RLock()
	out := make([]*Batch, 0, len(r.batches))
	for _, b := range r.batches {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].createdAt.Before(out[j].createdAt) })
	return out
}

// Sweep drops idle batches not updated within maxAge and returns how many
// were removed. Batches with an active run are never swept.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, b := range r.batches {
		if b.Running() || b.UpdatedAt().After(cutoff) {
			continue
		}
		delete(r.batches, id)
		removed++
	}
	if removed > 0 {
		r.logger.Info("idle batches swept", slog.Int("removed", removed))
	}
	return removed
}
