package locker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mtiwari1/gopherlock/internal/permission"
)

var (
	// ErrInvalidRequest wraps malformed lock requests (unknown restriction
	// or method).
	ErrInvalidRequest = errors.New("invalid lock request")

	// ErrMissingStoragePath is returned when a request names no source object.
	ErrMissingStoragePath = errors.New("no storage path provided")
)

var validate = validator.New()

// Request is the lock call payload shared by the HTTP and gRPC transports.
type Request struct {
	StoragePath        string   `json:"storagePath" validate:"required"`
	OpenPassword       string   `json:"openPassword,omitempty" validate:"required_without=PermissionPassword"`
	PermissionPassword string   `json:"permissionPassword,omitempty"`
	Restrictions       []string `json:"restrictions"`
	EncryptionMethod   string   `json:"encryptionMethod,omitempty" validate:"omitempty,oneof=aes-256 aes-128 rc4-128"`
	FileName           string   `json:"fileName"`
}

// Response is returned by a successful lock call. StoragePath is the key of
// the locked object so server-side consumers can fetch it without the URL.
type Response struct {
	SignedURL   string `json:"signedUrl"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath,omitempty"`
}

// Validate checks the request shape and maps the first problem to one of
// the package sentinels.
func (r Request) Validate() error {
	r.EncryptionMethod = strings.ToLower(strings.TrimSpace(r.EncryptionMethod))
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "StoragePath":
				return ErrMissingStoragePath
			case "OpenPassword":
				return ErrNoPasswordProvided
			}
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidRequest, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if _, err := permission.ParseRestrictions(r.Restrictions); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Options is the batch-wide lock template applied to every file.
type Options struct {
	OpenPassword       string                   `json:"openPassword,omitempty"`
	PermissionPassword string                   `json:"permissionPassword,omitempty"`
	Restrictions       []permission.Restriction `json:"restrictions"`
	Method             Method                   `json:"encryptionMethod,omitempty"`
}

// DefaultOptions restricts everything and uses AES-256. Passwords are left
// for the caller.
func DefaultOptions() Options {
	return Options{Restrictions: permission.All(), Method: DefaultMethod}
}

// HasPassword reports whether at least one password is set.
func (o Options) HasPassword() bool {
	return o.OpenPassword != "" || o.PermissionPassword != ""
}

// Request builds the per-file lock request.
func (o Options) Request(storagePath, fileName string) Request {
	return Request{
		StoragePath:        storagePath,
		OpenPassword:       o.OpenPassword,
		PermissionPassword: o.PermissionPassword,
		Restrictions:       permission.Strings(o.Restrictions),
		EncryptionMethod:   string(o.Method),
		FileName:           fileName,
	}
}
