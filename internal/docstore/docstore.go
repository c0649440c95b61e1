// Package docstore is the client for the external document store holding
// per-user interactive template records. The store is an external system:
// its failures are surfaced and classified, never hidden.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Store is consumed by the outbox dispatcher.
type Store interface {
	// CreateUserRecord provisions an editable record for a purchased
	// interactive template and returns the new record id.
	CreateUserRecord(ctx context.Context, userID, templateID string, structure map[string]any) (string, error)
	UpdateUserRecord(ctx context.Context, recordID string, fields map[string]any) error
	DeleteUserRecord(ctx context.Context, recordID string) error
	GetUserRecord(ctx context.Context, recordID string) (*Record, error)
}

var ErrRecordNotFound = errors.New("record_not_found")

// PermanentError wraps failures that retrying cannot fix (malformed ids,
// schema violations). Everything else is treated as transient.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
