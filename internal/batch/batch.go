// Package batch drives a set of files through the lock pipeline.
//
// A Batch owns its FileRecords. Records enter as pending, are moved through
// uploading to ready by the upload collaborator, and are locked strictly one
// at a time by a run. At most one run is active per batch; while it is
// active the record set cannot be changed by user actions.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mtiwari1/gopherlock/internal/locker"
)

var (
	// ErrNothingToDo is returned when no record is ready or failed.
	ErrNothingToDo = errors.New("no files ready to process")

	// ErrNoPasswordProvided rejects a run whose options carry no password.
	ErrNoPasswordProvided = locker.ErrNoPasswordProvided

	// ErrInvalidOptions rejects a run with an unknown restriction or method.
	ErrInvalidOptions = errors.New("invalid lock options")

	// ErrRunActive is returned for changes attempted while a run is active.
	ErrRunActive = errors.New("a lock run is already active")

	// ErrRecordNotFound is returned for unknown record ids.
	ErrRecordNotFound = errors.New("file not found in batch")

	// ErrInvalidTransition is returned when a record is not in a state that
	// allows the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DefaultCallTimeout bounds a single lock call.
const DefaultCallTimeout = 2 * time.Minute

// Locker is the lock call boundary. locker.Service implements it in
// process; the gRPC client implements it across the network.
type Locker interface {
	Lock(ctx context.Context, req locker.Request) (*locker.Response, error)
}

// Option configures a Batch.
type Option func(*Batch)

// WithID sets the batch id. A uuid is generated otherwise.
func WithID(id string) Option { return func(b *Batch) { b.id = id } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Batch) { b.logger = l } }

// WithCallTimeout bounds each lock call.
func WithCallTimeout(d time.Duration) Option { return func(b *Batch) { b.callTimeout = d } }

// WithObserver registers a function called synchronously for every event, on
// the goroutine that caused it. Observers must not mutate the batch.
func WithObserver(fn func(Event)) Option {
	return func(b *Batch) { b.observers = append(b.observers, fn) }
}

type activeRun struct {
	cancel context.CancelFunc
}

// Batch is a set of FileRecords plus the orchestration state of its runs.
type Batch struct {
	id          string
	locker      Locker
	logger      *slog.Logger
	callTimeout time.Duration
	now         func() time.Time
	observers   []func(Event)

	// emitMu serializes mutation+publication so events reach observers in
	// the order the changes were made.
	emitMu sync.Mutex

	mu        sync.Mutex
	records   []*FileRecord
	stats     Stats
	run       *activeRun
	createdAt time.Time
	updatedAt time.Time

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates an empty batch that locks through l.
func New(l Locker, opts ...Option) *Batch {
	b := &Batch{
		locker:      l,
		logger:      slog.Default(),
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
		subs:        make(map[int]chan Event),
	}
	for _, o := range opts {
		o(b)
	}
	if b.id == "" {
		b.id = uuid.New().String()
	}
	b.createdAt = b.now()
	b.updatedAt = b.createdAt
	b.logger = b.logger.With(slog.String("batch_id", b.id))
	return b
}

// ID returns the batch id.
func (b *Batch) ID() string { return b.id }

// Snapshot returns a consistent copy of the batch.
func (b *Batch) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs := make([]FileRecord, len(b.records))
	for i, r := range b.records {
		recs[i] = *r
	}
	return Snapshot{
		ID:        b.id,
		Records:   recs,
		Stats:     b.stats,
		Running:   b.run != nil,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}
}

// Stats returns the current aggregate.
func (b *Batch) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Running reports whether a run is active.
func (b *Batch) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.run != nil
}

// Get returns a copy of the record with the given id.
func (b *Batch) Get(id string) (FileRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.find(id); r != nil {
		return *r, true
	}
	return FileRecord{}, false
}

// Eligible returns copies of the records a run would pick up, in order.
func (b *Batch) Eligible() []FileRecord {
	return b.filter(func(r *FileRecord) bool { return r.Status.Eligible() })
}

// Succeeded returns copies of the successfully locked records, in order.
func (b *Batch) Succeeded() []FileRecord {
	return b.filter(func(r *FileRecord) bool { return r.Status == StatusSuccess })
}

func (b *Batch) filter(keep func(*FileRecord) bool) []FileRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []FileRecord
	for _, r := range b.records {
		if keep(r) {
			out = append(out, *r)
		}
	}
	return out
}

// Add creates an uploading record for a file whose bytes are still being
// stored. An empty relativePath defaults to name.
func (b *Batch) Add(name, relativePath string, size int64) (FileRecord, error) {
	return b.add(name, relativePath, "", size, StatusUploading)
}

// AddReady creates a record for a file whose bytes are already stored.
func (b *Batch) AddReady(name, relativePath, storageKey string, size int64) (FileRecord, error) {
	if storageKey == "" {
		return FileRecord{}, fmt.Errorf("batch add: %w: empty storage key", ErrInvalidTransition)
	}
	return b.add(name, relativePath, storageKey, size, StatusReady)
}

func (b *Batch) add(name, relativePath, storageKey string, size int64, status Status) (FileRecord, error) {
	if relativePath == "" {
		relativePath = name
	}

	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.run != nil {
		b.mu.Unlock()
		return FileRecord{}, ErrRunActive
	}
	now := b.now()
	rec := &FileRecord{
		ID:           uuid.New().String(),
		BatchID:      b.id,
		Name:         name,
		RelativePath: relativePath,
		Size:         size,
		StorageKey:   storageKey,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.records = append(b.records, rec)
	b.updatedAt = now
	ev := b.recordEvent(EventRecordUpdated, rec)
	b.mu.Unlock()

	b.publish(ev)
	return *ev.Record, nil
}

// MarkUploaded records a finished upload: pending/uploading -> ready.
// Allowed during a run; such records are not part of the active run.
func (b *Batch) MarkUploaded(id, storageKey string) error {
	return b.transition(id, func(r *FileRecord) error {
		if r.Status != StatusPending && r.Status != StatusUploading {
			return ErrInvalidTransition
		}
		r.Status = StatusReady
		r.StorageKey = storageKey
		r.ErrorMessage = ""
		return nil
	})
}

// MarkUploadFailed records a failed upload: pending/uploading -> failed.
func (b *Batch) MarkUploadFailed(id string, cause error) error {
	return b.transition(id, func(r *FileRecord) error {
		if r.Status != StatusPending && r.Status != StatusUploading {
			return ErrInvalidTransition
		}
		r.Status = StatusFailed
		r.ErrorMessage = "Upload failed"
		if cause != nil {
			r.ErrorMessage = "Upload failed: " + cause.Error()
		}
		return nil
	})
}

func (b *Batch) transition(id string, apply func(*FileRecord) error) error {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	r := b.find(id)
	if r == nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err := apply(r); err != nil {
		status := r.Status
		b.mu.Unlock()
		return fmt.Errorf("%w: record %s is %s", err, id, status)
	}
	r.UpdatedAt = b.now()
	b.updatedAt = r.UpdatedAt
	ev := b.recordEvent(EventRecordUpdated, r)
	b.mu.Unlock()

	b.publish(ev)
	return nil
}

// Remove deletes a record. Rejected while a run is active.
func (b *Batch) Remove(id string) error {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.run != nil {
		b.mu.Unlock()
		return ErrRunActive
	}
	idx := -1
	for i, r := range b.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	rec := b.records[idx]
	b.records = append(b.records[:idx], b.records[idx+1:]...)
	b.updatedAt = b.now()
	ev := b.recordEvent(EventRecordRemoved, rec)
	b.mu.Unlock()

	b.publish(ev)
	return nil
}

// Clear drops every record and resets the stats. Rejected while a run is
// active.
func (b *Batch) Clear() error {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.run != nil {
		b.mu.Unlock()
		return ErrRunActive
	}
	b.records = nil
	b.stats = Stats{}
	b.updatedAt = b.now()
	ev := Event{Kind: EventBatchCleared, BatchID: b.id, At: b.updatedAt}
	b.mu.Unlock()

	b.publish(ev)
	return nil
}

// UpdatedAt returns the time of the last change.
func (b *Batch) UpdatedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updatedAt
}

// find returns the live record. Callers hold mu.
func (b *Batch) find(id string) *FileRecord {
	for _, r := range b.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// recordEvent builds an event carrying a copy of r. Callers hold mu.
func (b *Batch) recordEvent(kind EventKind, r *FileRecord) Event {
	cp := *r
	return Event{Kind: kind, BatchID: b.id, Record: &cp, Stats: b.stats, At: b.now()}
}
