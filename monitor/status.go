// Package monitor derives each subscriber's current status from fresh
// panel records and locally stored subscription state, and decides when
// a status change warrants a message.
package monitor

import "fmt"

// State is a subscriber's derived standing. Priority when several
// apply: disabled > expired > over_quota > active.
type State string

const (
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateOverQuota State = "over_quota"
	StateDisabled  State = "disabled"
)

// UserStatus is an immutable per-cycle snapshot. Each reconciliation
// produces a fresh value; nothing mutates one in place.
type UserStatus struct {
	ClientID       string `json:"clientId"`
	Email          string `json:"email"`
	TgID           int64  `json:"tgId"`
	TotalBytesUsed int64  `json:"totalBytesUsed"`
	DataCapBytes   int64  `json:"dataCapBytes"` // 0 = unlimited
	ExpiresAt      int64  `json:"expiresAt"`    // unix ms, 0 = never
	State          State  `json:"state"`
}

// ReconciliationError marks a raw record too malformed to reconcile.
// The affected user is skipped; the batch continues.
type ReconciliationError struct {
	ClientID string
	Reason   string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("cannot reconcile client %q: %s", e.ClientID, e.Reason)
}
