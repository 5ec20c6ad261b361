package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mtiwari1/gopherlock/internal/batch"
)

// Key layout:
//
//	rec:<id>              -> JSON FileRecord
//	idx:<batchID>:<id>    -> empty (batch index)
const (
	prefixRecord = "rec:"
	prefixIndex  = "idx:"
)

func keyRecord(id string) []byte { return []byte(prefixRecord + id) }

func keyIndex(batchID, id string) []byte { return []byte(prefixIndex + batchID + ":" + id) }

func keyIndexPrefix(batchID string) []byte { return []byte(prefixIndex + batchID + ":") }

// BadgerConfig configures the embedded badger backend.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// BadgerRepo stores records in an embedded badger database.
type BadgerRepo struct {
	db *badger.DB
}

// NewBadgerRepo opens (creating if needed) the database described by cfg.
func NewBadgerRepo(cfg BadgerConfig) (*BadgerRepo, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}
	return &BadgerRepo{db: db}, nil
}

func (r *BadgerRepo) Save(ctx context.Context, rec batch.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("repo save marshal: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyRecord(rec.ID), val); err != nil {
			return err
		}
		return txn.Set(keyIndex(rec.BatchID, rec.ID), nil)
	})
	if err != nil {
		return fmt.Errorf("repo save: %w", err)
	}
	return nil
}

func (r *BadgerRepo) Get(ctx context.Context, id string) (*batch.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec batch.FileRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, id, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func getRecord(txn *badger.Txn, id string, rec *batch.FileRecord) error {
	item, err := txn.Get(keyRecord(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("repo get: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}

func (r *BadgerRepo) ListByBatch(ctx context.Context, batchID string) ([]batch.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []batch.FileRecord
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := keyIndexPrefix(batchID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			var rec batch.FileRecord
			if err := getRecord(txn, id, &rec); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repo listByBatch: %w", err)
	}
	sortRecords(out)
	return out, nil
}

func (r *BadgerRepo) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			var rec batch.FileRecord
			if err := getRecord(txn, id, &rec); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			if err := txn.Delete(keyRecord(id)); err != nil {
				return err
			}
			if err := txn.Delete(keyIndex(rec.BatchID, id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("repo delete: %w", err)
	}
	return nil
}

func (r *BadgerRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var stale []string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixRecord)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec batch.FileRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.UpdatedAt.Before(cutoff) {
				stale = append(stale, rec.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("repo deleteOlderThan: %w", err)
	}
	if err := r.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (r *BadgerRepo) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func (r *BadgerRepo) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
