package locker

import (
	"fmt"
	"strings"
)

// Method selects the cipher used when encrypting a document.
type Method string

const (
	AES256 Method = "aes-256"
	AES128 Method = "aes-128"
	RC4128 Method = "rc4-128" // legacy
)

// DefaultMethod is used when a request does not name one.
const DefaultMethod = AES256

// Methods lists the supported methods, strongest first.
func Methods() []Method {
	return []Method{AES256, AES128, RC4128}
}

// ParseMethod resolves a method name. The empty string selects DefaultMethod.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMethod, nil
	case AES256:
		return AES256, nil
	case AES128:
		return AES128, nil
	case RC4128:
		return RC4128, nil
	}
	return "", fmt.Errorf("%w: unknown encryption method %q", ErrInvalidRequest, s)
}

// keyLength returns the key size in bits for the method.
func (m Method) keyLength() int {
	if m == AES256 {
		return 256
	}
	return 128
}
