// Package storage is the object storage boundary: uploaded and locked
// documents are kept here for a limited time and handed out through
// time-limited retrieval URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key prefixes used for uploaded sources and locked outputs.
const (
	UploadsPrefix = "uploads/"
	LockedPrefix  = "locked/"
)

const contentTypePDF = "application/pdf"

var (
	// ErrNotFound is returned when a key does not exist, including objects
	// that were purged by the retention policy.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty keys or keys escaping the store.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes a stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is a small object storage interface. Implementations must honour
// the supplied context for cancellation and timeouts.
type Store interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SignedURL issues a retrieval URL valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// List returns the objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Upload stores raw bytes of a user supplied file and returns its key.
func Upload(ctx context.Context, s Store, data []byte, suggestedName string) (string, error) {
	key := UploadKey(suggestedName, time.Now())
	if err := s.Put(ctx, key, data, contentTypePDF); err != nil {
		return "", fmt.Errorf("storage upload: %w", err)
	}
	return key, nil
}

// UploadKey builds "uploads/<unix-millis>-<uuid>-<name>".
func UploadKey(name string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s-%s", UploadsPrefix, now.UnixMilli(), uuid.New().String(), SanitizeName(name))
}

// LockedKey builds "locked/<unix-millis>-<short id>-<name>". The short id
// keeps same-named outputs locked within one millisecond apart.
func LockedKey(name string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s-%s", LockedPrefix, now.UnixMilli(), uuid.New().String()[:8], SanitizeName(name))
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._() -]+`)

// SanitizeName reduces a display name to a single safe path segment.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		return "document.pdf"
	}
	return name
}

// cleanKey validates a key and returns its normalized form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
