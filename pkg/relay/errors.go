package relay

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that a target user has no token record, or a record
// with an empty token set. The wrapping message distinguishes the two.
var ErrNotFound = errors.New("no tokens found")

// ErrNotRegistered is the permanent-failure sentinel. Gateways wrap it when
// the upstream reports the device as unregistered; the dispatch engine prunes
// any token whose delivery error matches it.
var ErrNotRegistered = errors.New("device not registered")

// ValidationError reports a missing or malformed request field. It is never
// retried and maps to a 400 at the API boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// StoreError wraps a token store failure during reconciliation. Deliveries
// already made are not rolled back; an unpruned token is stale but harmless
// and will be pruned on a future cycle.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("token store update failed: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
