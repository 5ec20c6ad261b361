package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtiwari1/gopherlock/internal/batch"
)

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	bdb, err := NewBadgerRepo(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepo(),
		"badger": bdb,
	}
}

func record(id, batchID string, created time.Time) batch.FileRecord {
	return batch.FileRecord{
		ID:           id,
		BatchID:      batchID,
		Name:         id + ".pdf",
		RelativePath: "dir/" + id + ".pdf",
		Size:         42,
		StorageKey:   "uploads/" + id,
		Status:       batch.StatusReady,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestRepositories(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Ping(ctx))

			_, err := repo.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			a := record("a", "b1", base)
			b := record("b", "b1", base.Add(time.Second))
			c := record("c", "b2", base.Add(2*time.Second))
			for _, r := range []batch.FileRecord{b, a, c} {
				require.NoError(t, repo.Save(ctx, r))
			}

			a.Status = batch.StatusSuccess
			a.ResultURL = "mem://locked/a"
			a.ResultKey = "locked/a"
			a.OutputName = "a_locked.pdf"
			a.UpdatedAt = base.Add(time.Hour)
			require.NoError(t, repo.Save(ctx, a))

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, batch.StatusSuccess, got.Status)
			assert.Equal(t, "locked/a", got.ResultKey)
			assert.True(t, a.UpdatedAt.Equal(got.UpdatedAt))

			list, err := repo.ListByBatch(ctx, "b1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].ID)
			assert.Equal(t, "b", list[1].ID)

			n, err := repo.DeleteOlderThan(ctx, base.Add(30*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			list, err = repo.ListByBatch(ctx, "b1")
			require.NoError(t, err)
			require.Len(t, list, 1)

			require.NoError(t, repo.Delete(ctx, "a", "nope"))
			_, err = repo.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBadgerRequiresPath(t *testing.T) {
	_, err := NewBadgerRepo(BadgerConfig{})
	assert.Error(t, err)
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewBadgerRepo(BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), record("x", "b", time.Now())))
	require.NoError(t, repo.Close())

	repo, err = NewBadgerRepo(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer repo.Close()
	got, err := repo.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "b", got.BatchID)
}

func TestPersistObserver(t *testing.T) {
	repo := NewMemoryRepo()
	persist := Persist(repo, nil)
	rec := record("p", "b", time.Now())

	persist(batch.Event{Kind: batch.EventRecordUpdated, BatchID: "b", Record: &rec})
	got, err := repo.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "b", got.BatchID)

	persist(batch.Event{Kind: batch.EventStatsUpdated, BatchID: "b"})
	persist(batch.Event{Kind: batch.EventRecordRemoved, BatchID: "b", Record: &rec})
	_, err = repo.Get(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotFound)
}
