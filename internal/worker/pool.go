// Package worker implements a bounded worker pool that uploads submitted
// documents to storage ahead of a lock run.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mtiwari1/gopherlock/internal/hasher"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

// Job is one file to upload.
// Contains a context.Context for cancellation and deadline propagation.
type Job struct {
	Ctx     context.Context
	BatchID string
	FileID  string
	Name    string
	Data    []byte
}

// Result holds the outcome of processing a single job.
type Result struct {
	BatchID    string
	FileID     string
	StorageKey string
	Hash       string
	Size       int64
	Err        error
}

// Pool manages a fixed set of worker goroutines that process Jobs from a channel
// and emit Results to another channel.
type Pool struct {
	workers int
	store   storage.Store
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	once    sync.Once

	// submitMu orders Submit against Shutdown closing jobs.
	submitMu sync.RWMutex
	closed   bool
}

// NewPool creates a pool with the given number of workers uploading to store.
// Call Start() to launch the goroutines.
func NewPool(workers int, store storage.Store, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		store:   store,
		jobs:    make(chan Job, workers*2), // small buffer for backpressure
		results: make(chan Result, workers*2),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start launches worker goroutines. Each reads from the jobs channel until it is
// closed or the pool is cancelled.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a job. It blocks if the jobs channel buffer is full (backpressure).
// Returns false if the pool is shut down or cancelled.
func (p *Pool) Submit(job Job) bool {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Results returns the read-only results channel for the consumer.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown closes the jobs channel, waits for queued jobs to drain, then
// closes the results channel. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.submitMu.Lock()
		p.closed = true
		p.submitMu.Unlock()

		close(p.jobs)
		p.wg.Wait()
		p.cancel()
		close(p.results)
	})
}

// Cancel stops the workers without draining the queue. Shutdown must still
// be called to release the results channel.
func (p *Pool) Cancel() {
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				p.logger.Info("worker exiting", slog.Int("worker_id", id))
				return
			}
			p.results <- p.process(id, job)

		case <-p.ctx.Done():
			p.logger.Info("worker cancelled", slog.Int("worker_id", id))
			return
		}
	}
}

// process checks and stores a single document.
func (p *Pool) process(workerID int, job Job) Result {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	res := Result{BatchID: job.BatchID, FileID: job.FileID}

	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("job cancelled before processing: %w", err)
		return res
	}

	logger := p.logger.With(
		slog.Int("worker_id", workerID),
		slog.String("batch_id", job.BatchID),
		slog.String("file_id", job.FileID),
	)
	start := time.Now()
	logger.Info("upload started", slog.String("file", job.Name))

	meta, err := hasher.InspectPDF(job.Data, job.Name)
	if err != nil {
		logger.Warn("upload rejected", slog.String("error", err.Error()))
		res.Err = err
		return res
	}

	key, err := storage.Upload(ctx, p.store, job.Data, job.Name)
	latency := time.Since(start)
	if err != nil {
		logger.Error("upload failed",
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		res.Err = err
		return res
	}

	logger.Info("upload completed",
		slog.Duration("latency", latency),
		slog.String("hash", meta.Hash),
		slog.String("size", humanize.Bytes(uint64(meta.Size))),
		slog.String("storage_path", key),
	)
	res.StorageKey = key
	res.Hash = meta.Hash
	res.Size = meta.Size
	return res
}
