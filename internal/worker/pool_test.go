package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtiwari1/gopherlock/internal/hasher"
	"github.com/mtiwari1/gopherlock/internal/pdftest"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

func TestPoolUploads(t *testing.T) {
	store := storage.NewMemoryStore()
	p := NewPool(2, store, nil)
	p.Start()

	doc := pdftest.Document(1)
	go func() {
		p.Submit(Job{Ctx: context.Background(), BatchID: "b", FileID: "ok", Name: "a.pdf", Data: doc})
		p.Submit(Job{Ctx: context.Background(), BatchID: "b", FileID: "bad", Name: "b.pdf", Data: []byte("hello")})
		p.Shutdown()
	}()

	results := make(map[string]Result)
	for r := range p.Results() {
		results[r.FileID] = r
	}
	require.Len(t, results, 2)

	ok := results["ok"]
	require.NoError(t, ok.Err)
	assert.Equal(t, "b", ok.BatchID)
	assert.Contains(t, ok.StorageKey, storage.UploadsPrefix)
	assert.Equal(t, int64(len(doc)), ok.Size)
	stored, err := store.Get(context.Background(), ok.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, doc, stored)

	assert.ErrorIs(t, results["bad"].Err, hasher.ErrNotPDF)
}

func TestPoolCancelledJob(t *testing.T) {
	p := NewPool(1, storage.NewMemoryStore(), nil)
	p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, p.Submit(Job{Ctx: ctx, FileID: "x", Name: "x.pdf", Data: pdftest.Document(1)}))

	r := <-p.Results()
	assert.ErrorIs(t, r.Err, context.Canceled)
	p.Shutdown()
	p.Shutdown()
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool(1, storage.NewMemoryStore(), nil)
	p.Start()
	p.Shutdown()

	assert.NotPanics(t, func() {
		ok := p.Submit(Job{Ctx: context.Background(), FileID: "late", Name: "late.pdf", Data: pdftest.Document(1)})
		assert.False(t, ok)
	})
}

func TestPoolSubmitRacingShutdown(t *testing.T) {
	p := NewPool(2, storage.NewMemoryStore(), nil)
	p.Start()

	doc := pdftest.Document(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			p.Submit(Job{Ctx: context.Background(), FileID: "f", Name: "f.pdf", Data: doc})
		}
	}()
	go func() {
		for range p.Results() {
		}
	}()

	p.Shutdown()
	<-done
	assert.False(t, p.Submit(Job{Ctx: context.Background(), FileID: "late", Name: "late.pdf", Data: doc}))
}
