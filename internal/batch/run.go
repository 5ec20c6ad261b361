package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/permission"
)

// Start validates opts and launches a run over the eligible records on a new
// goroutine. The returned channel receives exactly one Summary when the run
// finishes. Cancelling ctx or calling Stop ends the run at the next file
// boundary; the in-flight lock call is always allowed to complete.
func (b *Batch) Start(ctx context.Context, opts locker.Options) (<-chan Summary, error) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.run != nil {
		b.mu.Unlock()
		return nil, ErrRunActive
	}
	var ids []string
	for _, r := range b.records {
		if r.Status.Eligible() {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		b.mu.Unlock()
		return nil, ErrNothingToDo
	}
	if !opts.HasPassword() {
		b.mu.Unlock()
		return nil, ErrNoPasswordProvided
	}
	if err := checkOptions(opts); err != nil {
		b.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.run = &activeRun{cancel: cancel}
	b.stats = Stats{Total: len(ids)}
	b.updatedAt = b.now()
	ev := Event{Kind: EventRunStarted, BatchID: b.id, Stats: b.stats, At: b.updatedAt}
	b.mu.Unlock()

	b.publish(ev)
	b.logger.Info("lock run started",
		slog.Int("files", len(ids)),
		slog.String("method", string(opts.Method)),
	)

	done := make(chan Summary, 1)
	go func() {
		defer cancel()
		done <- b.process(runCtx, ids, opts)
	}()
	return done, nil
}

// Run is Start followed by waiting for the Summary.
func (b *Batch) Run(ctx context.Context, opts locker.Options) (Summary, error) {
	done, err := b.Start(ctx, opts)
	if err != nil {
		return Summary{}, err
	}
	return <-done, nil
}

// Stop requests cancellation of the active run. It reports false when no run
// is active.
func (b *Batch) Stop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return false
	}
	b.run.cancel()
	return true
}

func checkOptions(opts locker.Options) error {
	if _, err := locker.ParseMethod(string(opts.Method)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if _, err := permission.ParseRestrictions(permission.Strings(opts.Restrictions)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

func (b *Batch) process(ctx context.Context, ids []string, opts locker.Options) Summary {
	cancelled := false
	for i, id := range ids {
		if ctx.Err() != nil {
			b.stopRemaining(ids[i:])
			cancelled = true
			break
		}
		b.lockOne(ctx, id, opts)
	}
	return b.finish(cancelled)
}

// lockOne runs a single record through the Locker. Locker errors are
// recorded on the record and never abort the run.
func (b *Batch) lockOne(runCtx context.Context, id string, opts locker.Options) {
	req, ok := b.beginRecord(id, opts)
	if !ok {
		return
	}

	logger := b.logger.With(slog.String("file_id", id), slog.String("file", req.FileName))
	logger.Info("locking file")
	start := time.Now()

	// The codec call is atomic: cancelling the run must not abort it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), b.callTimeout)
	resp, err := b.locker.Lock(callCtx, req)
	cancel()

	if err == nil && (resp == nil || resp.SignedURL == "") {
		err = errors.New("lock failed")
	}
	if err != nil {
		logger.Error("file lock failed",
			slog.String("error", err.Error()),
			slog.Duration("latency", time.Since(start)),
		)
	} else {
		logger.Info("file locked",
			slog.String("output", resp.FileName),
			slog.Duration("latency", time.Since(start)),
		)
	}
	b.completeRecord(id, resp, err)
}

// beginRecord moves the record to processing and builds its request.
func (b *Batch) beginRecord(id string, opts locker.Options) (locker.Request, bool) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	r := b.find(id)
	if r == nil {
		b.mu.Unlock()
		return locker.Request{}, false
	}
	r.Status = StatusProcessing
	r.ErrorMessage = ""
	r.UpdatedAt = b.now()
	b.updatedAt = r.UpdatedAt
	req := opts.Request(r.StorageKey, r.Name)
	ev := b.recordEvent(EventRecordUpdated, r)
	b.mu.Unlock()

	b.publish(ev)
	return req, true
}

func (b *Batch) completeRecord(id string, resp *locker.Response, err error) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	r := b.find(id)
	if r == nil {
		b.mu.Unlock()
		return
	}
	b.stats.Processed++
	if err != nil {
		r.Status = StatusFailed
		r.ErrorMessage = err.Error()
		b.stats.Failed++
	} else {
		r.Status = StatusSuccess
		r.ResultURL = resp.SignedURL
		r.ResultKey = resp.StoragePath
		r.OutputName = resp.FileName
		if r.OutputName == "" {
			r.OutputName = locker.OutputName(r.Name)
		}
		b.stats.Succeeded++
	}
	r.UpdatedAt = b.now()
	b.updatedAt = r.UpdatedAt
	recEv := b.recordEvent(EventRecordUpdated, r)
	statsEv := Event{Kind: EventStatsUpdated, BatchID: b.id, Stats: b.stats, At: r.UpdatedAt}
	b.mu.Unlock()

	b.publish(recEv)
	b.publish(statsEv)
}

// stopRemaining returns the not-yet-started records to ready.
func (b *Batch) stopRemaining(ids []string) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	var events []Event
	for _, id := range ids {
		r := b.find(id)
		if r == nil {
			continue
		}
		r.Status = StatusReady
		r.ErrorMessage = MessageStopped
		r.UpdatedAt = b.now()
		b.updatedAt = r.UpdatedAt
		events = append(events, b.recordEvent(EventRecordUpdated, r))
	}
	b.mu.Unlock()

	for _, ev := range events {
		b.publish(ev)
	}
	b.logger.Info("lock run stopped", slog.Int("skipped", len(ids)))
}

func (b *Batch) finish(cancelled bool) Summary {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	b.run = nil
	b.updatedAt = b.now()
	summary := Summary{Stats: b.stats, Cancelled: cancelled}
	ev := Event{Kind: EventRunFinished, BatchID: b.id, Stats: b.stats, Cancelled: cancelled, At: b.updatedAt}
	b.mu.Unlock()

	b.publish(ev)
	b.logger.Info("lock run finished",
		slog.Int("processed", summary.Stats.Processed),
		slog.Int("succeeded", summary.Stats.Succeeded),
		slog.Int("failed", summary.Stats.Failed),
		slog.Bool("cancelled", cancelled),
	)
	return summary
}
