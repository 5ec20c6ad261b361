package storage

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSignatureInvalid is returned by Verify for tampered URLs.
	ErrSignatureInvalid = errors.New("invalid url signature")

	// ErrURLExpired is returned by Verify once the URL lifetime has passed.
	ErrURLExpired = errors.New("url expired")
)

// FSStore keeps objects as files below a root directory. Retrieval URLs
// point at the HTTP gateway's /objects route and carry an HMAC signature.
type FSStore struct {
	root       string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// FSStoreConfig configures an FSStore.
type FSStoreConfig struct {
	// Path is the root directory. It is created if missing.
	Path string `mapstructure:"path"`

	// BaseURL is the externally reachable gateway address, e.g. http://localhost:8080.
	BaseURL string `mapstructure:"base_url"`

	// SigningKey authenticates retrieval URLs.
	SigningKey string `mapstructure:"signing_key"`
}

// NewFSStore creates the root directory and returns the store.
func NewFSStore(cfg FSStoreConfig) (*FSStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("fs store: path is required")
	}
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("fs store: signing key is required")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: create root: %w", err)
	}
	return &FSStore{
		root:       filepath.Clean(cfg.Path),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		signingKey: []byte(cfg.SigningKey),
		now:        time.Now,
	}, nil
}

// pathFor maps a key to a file below root, refusing traversal.
func (s *FSStore) pathFor(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(key)))
	if !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return p, nil
}

// Put writes atomically: temp file in the target directory, then rename.
func (s *FSStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("fs store put: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*.tmp")
	if err != nil {
		return fmt.Errorf("fs store put: temp file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if _, err := bw.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fs store put: write: %w", err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fs store put: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fs store put: close: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fs store put: rename: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("fs store get: %w", err)
	}
	return data, nil
}

// SignedURL returns <base>/objects/<key>?expires=<unix>&sig=<hex>.
func (s *FSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{"expires": {expires}, "sig": {s.sign(key, expires)}}
	return s.baseURL + "/objects/" + (&url.URL{Path: key}).EscapedPath() + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (s *FSStore) Verify(key, expires, sig string) error {
	want, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(want, s.mac(key, expires)) {
		return ErrSignatureInvalid
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if s.now().Unix() > exp {
		return ErrURLExpired
	}
	return nil
}

func (s *FSStore) sign(key, expires string) string {
	return hex.EncodeToString(s.mac(key, expires))
}

func (s *FSStore) mac(key, expires string) []byte {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(key))
	h.Write([]byte{'|'})
	h.Write([]byte(expires))
	return h.Sum(nil)
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fs store list: %w", err)
	}
	return out, nil
}

func (s *FSStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := s.pathFor(k)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("fs store delete %s: %w", k, err)
		}
	}
	return nil
}
