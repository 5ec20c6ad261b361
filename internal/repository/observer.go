package repository

import (
	"context"
	"log/slog"

	"github.com/mtiwari1/gopherlock/internal/batch"
)

// Persist returns a batch observer that mirrors record changes into repo.
// Failures are logged; they never affect the batch.
func Persist(repo Repository, logger *slog.Logger) func(batch.Event) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev batch.Event) {
		if ev.Record == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		var err error
		switch ev.Kind {
		case batch.EventRecordUpdated:
			err = repo.Save(ctx, *ev.Record)
		case batch.EventRecordRemoved:
			err = repo.Delete(ctx, ev.Record.ID)
		default:
			return
		}
		if err != nil {
			logger.Error("persist record",
				slog.String("batch_id", ev.BatchID),
				slog.String("file_id", ev.Record.ID),
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}
