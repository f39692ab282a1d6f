package monitor

// NotificationKind names the message a status transition calls for.
type NotificationKind string

const (
	NotifyExpired   NotificationKind = "expired"
	NotifyOverQuota NotificationKind = "over_quota"
	NotifyDisabled  NotificationKind = "disabled"
	NotifyRestored  NotificationKind = "restored"
)

// ShouldNotify reports whether the transition from previous to current
// warrants a message. Pure: unchanged state never notifies, and a
// first-ever observation of an active subscription stays silent.
func ShouldNotify(previous, current UserStatus) (NotificationKind, bool) {
	if current.State == previous.State {
		return "", false
	}
	switch current.State {
	case StateDisabled:
		return NotifyDisabled, true
	case StateExpired:
		return NotifyExpired, true
	case StateOverQuota:
		return NotifyOverQuota, true
	case StateActive:
		if previous.State == "" {
			return "", false
		}
		return NotifyRestored, true
	}
	return "", false
}

// Gate layers the persisted "last notified state" on top of
// ShouldNotify so a transition is announced at most once, even across
// process restarts. The caller persists the record after dispatch.
type Gate struct{}

func (Gate) Evaluate(previous, current UserStatus, lastNotified State) (NotificationKind, bool) {
	kind, ok := ShouldNotify(previous, current)
	if !ok {
		return "", false
	}
	if lastNotified == current.State {
		return "", false
	}
	return kind, true
}
