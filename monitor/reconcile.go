package monitor

import (
	"time"

	"github.com/xui-tools/xui-bot/database/model"
	"github.com/xui-tools/xui-bot/xui"
)

// Reconcile merges one raw panel record with the stored subscription
// and derives the current status. Pure: no I/O, deterministic for a
// given now.
//
// Usage accumulates by delta against the raw counter seen last cycle.
// A raw total below that baseline means the panel counter was reset, in
// which case accumulation restarts from the new raw value; usage never
// underflows.
func Reconcile(now time.Time, raw xui.RawClientRecord, stored model.Subscription) (UserStatus, error) {
	if raw.ClientID == "" {
		return UserStatus{}, &ReconciliationError{ClientID: raw.Email, Reason: "empty client id"}
	}
	if raw.UploadBytes < 0 || raw.DownloadBytes < 0 {
		return UserStatus{}, &ReconciliationError{ClientID: raw.ClientID, Reason: "negative byte counter"}
	}

	rawTotal := raw.RawTotal()
	var used int64
	if rawTotal < stored.LastRawBytes {
		used = rawTotal
	} else {
		used = stored.TotalUsedBytes + (rawTotal - stored.LastRawBytes)
	}

	// Panel-side cap and expiry win when present, stored metadata fills
	// the gaps for clients the panel reports bare.
	capBytes := raw.TotalBytes
	if capBytes == 0 {
		capBytes = stored.DataCapBytes
	}
	expiresAt := raw.ExpiryTime
	if expiresAt == 0 {
		expiresAt = stored.ExpiryTime
	}

	status := UserStatus{
		ClientID:       raw.ClientID,
		Email:          raw.Email,
		TgID:           stored.TgId,
		TotalBytesUsed: used,
		DataCapBytes:   capBytes,
		ExpiresAt:      expiresAt,
		State:          deriveState(now, raw.Enabled, expiresAt, capBytes, used),
	}
	return status, nil
}

// deriveState applies the priority order: disabled beats expired beats
// over-quota, first match wins.
func deriveState(now time.Time, enabled bool, expiresAt, capBytes, used int64) State {
	switch {
	case !enabled:
		return StateDisabled
	case expiresAt != 0 && now.UnixMilli() > expiresAt:
		return StateExpired
	case capBytes > 0 && used >= capBytes:
		return StateOverQuota
	default:
		return StateActive
	}
}

// ApplyTo folds a reconciled status back into the stored subscription
// so the next cycle reconciles against it.
func (s UserStatus) ApplyTo(sub *model.Subscription, rawTotal int64, now time.Time) {
	sub.ClientId = s.ClientID
	sub.Email = s.Email
	sub.Enabled = s.State != StateDisabled
	sub.DataCapBytes = s.DataCapBytes
	sub.ExpiryTime = s.ExpiresAt
	sub.TotalUsedBytes = s.TotalBytesUsed
	sub.LastRawBytes = rawTotal
	sub.LastState = string(s.State)
	sub.LastSyncAt = now.Unix()
}
