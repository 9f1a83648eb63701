package bulk

import (
	"errors"
	"fmt"
)

// ErrCodeInvalidationFailed indicates the mutation completed but its
// invalidation signal could not be delivered.
const ErrCodeInvalidationFailed = "INVALIDATION_FAILED"

// InvalidationError reports a completed mutation whose signal the
// Invalidator rejected. The rows were changed; caches may be stale.
type InvalidationError struct {
	// SignalID identifies the undelivered signal.
	SignalID string

	// Entity is the mutated entity.
	Entity string

	Err error
}

func (e *InvalidationError) Error() string {
	return fmt.Sprintf("%s: %s signal %s: %v", ErrCodeInvalidationFailed, e.Entity, e.SignalID, e.Err)
}

func (e *InvalidationError) Unwrap() error {
	return e.Err
}

// IsInvalidationFailed returns true if err is an InvalidationError.
// Uses errors.As to handle wrapped errors.
func IsInvalidationFailed(err error) bool {
	var ie *InvalidationError
	return errors.As(err, &ie)
}
