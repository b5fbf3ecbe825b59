package barcode

import (
	"errors"
	"fmt"
)

// DecryptionError is returned for barcode payloads that cannot be decrypted or
// decoded into a record. It is an expected, per-request failure.
type DecryptionError struct {
	Message string
}

func (e *DecryptionError) Error() string {
	return e.Message
}

// NewDecryptionError formats a DecryptionError.
func NewDecryptionError(format string, args ...any) *DecryptionError {
	return &DecryptionError{Message: fmt.Sprintf(format, args...)}
}

// IsDecryptionError reports whether err is or wraps a DecryptionError.
func IsDecryptionError(err error) bool {
	var decErr *DecryptionError
	return errors.As(err, &decErr)
}

// KeyMaterialParseError is returned when a public key cannot be parsed at startup.
// The service must not serve requests without all four keys.
type KeyMaterialParseError struct {
	Key string
	Err error
}

func (e *KeyMaterialParseError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to parse key material: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse key material %s: %v", e.Key, e.Err)
}

func (e *KeyMaterialParseError) Unwrap() error {
	return e.Err
}
