// Package relay contains the public interfaces and domain models for the
// push relay service.
package relay

import (
	"strings"
	"time"
)

// BroadcastUserID is the reserved userId literal that resolves a send
// request to every registered user.
const BroadcastUserID = "all"

// TargetKind discriminates the three ways a dispatch can be addressed.
type TargetKind int

const (
	// TargetUser addresses every token registered for one user.
	TargetUser TargetKind = iota
	// TargetAllUsers addresses every token of every user.
	TargetAllUsers
	// TargetDirectToken addresses a single raw token with no owner lookup.
	TargetDirectToken
)

// Target selects the recipients of one dispatch cycle.
type Target struct {
	Kind   TargetKind
	UserID string // set for TargetUser
	Token  string // set for TargetDirectToken
}

func UserTarget(userID string) Target {
	return Target{Kind: TargetUser, UserID: userID}
}

func AllUsersTarget() Target {
	return Target{Kind: TargetAllUsers}
}

func DirectTokenTarget(token string) Target {
	return Target{Kind: TargetDirectToken, Token: token}
}

// Payload is the ephemeral notification content for one dispatch cycle.
// Priority and Sound are optional; the engine fills in the configured
// defaults ("high" / "default") when they are empty.
type Payload struct {
	Title    string
	Body     string
	Image    string // optional image URL, forwarded verbatim
	Data     map[string]any
	Priority string
	Sound    string
}

// Message is one concrete (token, payload) delivery handed to a Gateway.
// All defaults have been applied by the time a Gateway sees it.
type Message struct {
	To       string
	Title    string
	Body     string
	Image    string
	Sound    string
	Priority string
	Data     map[string]any
}

// Status classifies the result of one delivery attempt.
type Status int

const (
	StatusDelivered Status = iota
	// StatusFailedTransient covers timeouts, network errors and unknown
	// gateway codes. The token stays in the store.
	StatusFailedTransient
	// StatusFailedPermanent means the gateway reported the device as
	// unregistered. The token is safe to prune.
	StatusFailedPermanent
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusFailedTransient:
		return "failed_transient"
	case StatusFailedPermanent:
		return "failed_permanent"
	}
	return "unknown"
}

// Outcome records the result of one delivery within a dispatch cycle.
// Owner is empty for direct-token deliveries, which have no record to
// reconcile against.
type Outcome struct {
	Owner  string
	Token  string
	Status Status
	Err    error
}

// Summary aggregates one dispatch cycle. Attempted is always equal to
// Delivered + Failed + Removed; Failed counts deliveries that failed but
// whose tokens were not pruned.
type Summary struct {
	Attempted int
	Delivered int
	Failed    int
	Removed   int
}

// TokenRecord is one user's stored token set. Token uniqueness is enforced
// by the store; insertion order carries no meaning. UpdatedAt is advisory.
type TokenRecord struct {
	UserID    string
	Tokens    []string
	UpdatedAt time.Time
}

// TokenFormat reports whether a device token is well formed for the
// configured upstream gateway.
type TokenFormat func(token string) bool

// ExpoToken matches the Expo push token convention: "ExponentPushToken[...]",
// or "ExpoPushToken[...]" from older SDKs.
func ExpoToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	return strings.HasPrefix(token, "ExponentPushToken[") ||
		strings.HasPrefix(token, "ExpoPushToken[")
}

// OpaqueToken accepts any non-empty token. FCM registration tokens have no
// stable format worth checking.
func OpaqueToken(token string) bool {
	return token != ""
}
