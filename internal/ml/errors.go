package ml

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned by a model that answered without any text
var ErrEmptyResponse = errors.New("no response generated")

// BackendError means the diagnosis call itself failed: network, auth, quota, timeout or an
// empty payload. The caller decides whether to retry.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("diagnosis backend %s failed: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// SchemaError means the backend answered but the payload broke the response contract
type SchemaError struct {
	Field  string // JSON field name, empty when the payload as a whole is unusable
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "diagnosis response violates schema"
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsBackendError reports whether err carries a BackendError
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// IsSchemaError reports whether err carries a SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
