// Package queue defines the auth event payloads exchanged over the
// message broker and the background consumer that turns them into an
// audit trail.
package queue

// Event types published on the auth.events queue.
const (
	EventUserRegistered  = "user.registered"
	EventUserActivated   = "user.activated"
	EventPasswordChanged = "password.changed"
)

// AuthEvent is published after a state transition on a user account. It
// carries enough information for downstream consumers to log or notify
// without querying the primary database.
type AuthEvent struct {
	Type   string `json:"type"`
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	At     string `json:"at"` // RFC3339
}
