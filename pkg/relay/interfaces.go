package relay

import "context"

// TokenStore defines the contract for the user → token-set document store.
//
// Add and Remove must be atomic set-union / set-difference operations on the
// user's document, not wholesale rewrites. The relay depends on this so that
// a token registered while a dispatch cycle is in flight is never lost to a
// concurrent prune.
type TokenStore interface {
	// Add registers a token for a user, creating the record on first use.
	// Adding a token that is already present is a no-op.
	Add(ctx context.Context, userID, token string) error

	// Get returns the record for one user, or ErrNotFound if the user has
	// never registered a token.
	Get(ctx context.Context, userID string) (TokenRecord, error)

	// All returns every token record in the store.
	All(ctx context.Context) ([]TokenRecord, error)

	// Remove deletes the given tokens from a user's record via
	// set-difference. Tokens not present are ignored, which makes Remove
	// idempotent.
	Remove(ctx context.Context, userID string, tokens []string) error
}

// Gateway delivers one message to the upstream push API.
//
// A nil return means delivered. An error wrapping ErrNotRegistered means the
// token is permanently invalid and safe to prune; any other error is treated
// as transient. Implementations must be safe for concurrent use.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}
