package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	key := UploadKey("reports/Q1 report.pdf", now)

	assert.True(t, strings.HasPrefix(key, "uploads/1700000000123-"), key)
	assert.True(t, strings.HasSuffix(key, "-Q1 report.pdf"), key)
	assert.Regexp(t, `^locked/1700000000123-[0-9a-f]{8}-a_locked\.pdf$`, LockedKey("a_locked.pdf", now))
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`dir\evil.pdf`:        "evil.pdf",
		"résumé.pdf":          "r_sum_.pdf",
		"":                    "document.pdf",
		"..":                  "document.pdf",
		"a/b/c (copy).pdf":    "c (copy).pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), in)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	key, err := Upload(ctx, s, []byte("%PDF-1.4"), "a.pdf")
	require.NoError(t, err)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), got)

	u, err := s.SignedURL(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "mem://"+key+"?expires="))

	objs, err := s.List(ctx, UploadsPrefix)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, key, objs[0].Key)
	assert.EqualValues(t, 8, objs[0].Size)

	require.NoError(t, s.Delete(ctx, key, "missing/key"))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SignedURL(ctx, key, time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"", "/abs", "../up", "..", `a\b`} {
		assert.ErrorIs(t, s.Put(ctx, k, nil, ""), ErrInvalidKey, k)
	}
}

func TestFSStore_PutGetSignVerify(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(FSStoreConfig{Path: t.TempDir(), BaseURL: "http://localhost:8080/", SigningKey: "secret"})
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	key := "locked/1-report_locked.pdf"
	require.NoError(t, s.Put(ctx, key, []byte("data"), contentTypePDF))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	raw, err := s.SignedURL(ctx, key, time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/objects/"+key, u.Path)
	assert.Equal(t, "localhost:8080", u.Host)

	expires, sig := u.Query().Get("expires"), u.Query().Get("sig")
	require.NoError(t, s.Verify(key, expires, sig))
	assert.ErrorIs(t, s.Verify("locked/other.pdf", expires, sig), ErrSignatureInvalid)
	assert.ErrorIs(t, s.Verify(key, expires, "zz"), ErrSignatureInvalid)

	now = now.Add(2 * time.Hour)
	assert.ErrorIs(t, s.Verify(key, expires, sig), ErrURLExpired)
}

func TestFSStore_NotFoundAndTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(FSStoreConfig{Path: t.TempDir(), SigningKey: "k"})
	require.NoError(t, err)

	_, err = s.Get(ctx, "uploads/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SignedURL(ctx, "uploads/missing.pdf", time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "../escape.pdf", []byte("x"), ""), ErrInvalidKey)
	_, err = s.Get(ctx, "uploads/../../escape.pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFSStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(FSStoreConfig{Path: t.TempDir(), SigningKey: "k"})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "uploads/a.pdf", []byte("a"), ""))
	require.NoError(t, s.Put(ctx, "uploads/b.pdf", []byte("bb"), ""))
	require.NoError(t, s.Put(ctx, "locked/c.pdf", []byte("ccc"), ""))

	objs, err := s.List(ctx, UploadsPrefix)
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	require.NoError(t, s.Delete(ctx, "uploads/a.pdf", "uploads/never.pdf"))
	objs, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestNewFSStore_RequiresConfig(t *testing.T) {
	_, err := NewFSStore(FSStoreConfig{SigningKey: "k"})
	assert.Error(t, err)
	_, err = NewFSStore(FSStoreConfig{Path: t.TempDir()})
	assert.Error(t, err)
}

func TestSweeper_RemovesOnlyStaleObjects(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })
	require.NoError(t, s.Put(ctx, "uploads/old.pdf", []byte("1"), ""))
	require.NoError(t, s.Put(ctx, "locked/old_locked.pdf", []byte("1"), ""))
	require.NoError(t, s.Put(ctx, "other/keep.txt", []byte("1"), ""))

	s.SetClock(func() time.Time { return base.Add(50 * time.Minute) })
	require.NoError(t, s.Put(ctx, "uploads/fresh.pdf", []byte("1"), ""))

	sw := NewSweeper(s, time.Hour, nil)
	sw.now = func() time.Time { return base.Add(61 * time.Minute) }

	deleted, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	objs, err := s.List(ctx, "")
	require.NoError(t, err)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"other/keep.txt", "uploads/fresh.pdf"}, keys)
}
