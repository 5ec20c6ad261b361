// Package locker applies password protection and permission restrictions to
// PDF documents and exposes the operation as a storage-backed service.
package locker

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mtiwari1/gopherlock/internal/permission"
)

var (
	// ErrInvalidDocument is returned when the input does not parse as a PDF.
	ErrInvalidDocument = errors.New("invalid pdf document")

	// ErrEncryptionFailed is returned when the codec fails while encrypting
	// or serializing.
	ErrEncryptionFailed = errors.New("pdf encryption failed")

	// ErrNoPasswordProvided is returned when neither password is set.
	ErrNoPasswordProvided = errors.New("at least one password must be provided")
)

// pdfcpu looks for a configuration directory under the user's home unless
// told otherwise. The switch is process wide and only needs to happen once.
var codecInit sync.Once

func initCodec() {
	codecInit.Do(api.DisableConfigDir)
}

// OwnerPassword resolves the owner password for a lock. The permission
// password wins; otherwise the open password doubles as owner password so
// the restrictions stay enforceable.
func OwnerPassword(openPassword, permissionPassword string) string {
	if permissionPassword != "" {
		return permissionPassword
	}
	return openPassword
}

// Lock encrypts data with the given passwords, permission mask and method.
// An empty open password means the document opens without a password.
// On error no output is returned.
func Lock(data []byte, openPassword, permissionPassword string, mask permission.Mask, method Method) ([]byte, error) {
	if openPassword == "" && permissionPassword == "" {
		return nil, ErrNoPasswordProvided
	}
	if method == "" {
		method = DefaultMethod
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}

	initCodec()

	if _, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	conf := encryptionConfig(openPassword, OwnerPassword(openPassword, permissionPassword), method)
	conf.Permissions = model.PermissionFlags(mask)

	// api.Encrypt runs the optimizer before writing: unused objects are
	// dropped and object/xref streams are written.
	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return out.Bytes(), nil
}

func encryptionConfig(userPW, ownerPW string, method Method) *model.Configuration {
	if method == RC4128 {
		return model.NewRC4Configuration(userPW, ownerPW, method.keyLength())
	}
	return model.NewAESConfiguration(userPW, ownerPW, method.keyLength())
}
