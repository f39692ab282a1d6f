package monitor

import "testing"

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		name     string
		previous State
		current  State
		wantKind NotificationKind
		wantOk   bool
	}{
		{"unchanged active", StateActive, StateActive, "", false},
		{"unchanged expired", StateExpired, StateExpired, "", false},
		{"active to expired", StateActive, StateExpired, NotifyExpired, true},
		{"active to over quota", StateActive, StateOverQuota, NotifyOverQuota, true},
		{"active to disabled", StateActive, StateDisabled, NotifyDisabled, true},
		{"expired to active", StateExpired, StateActive, NotifyRestored, true},
		{"over quota to active", StateOverQuota, StateActive, NotifyRestored, true},
		{"over quota to disabled", StateOverQuota, StateDisabled, NotifyDisabled, true},
		{"first sight active stays silent", "", StateActive, "", false},
		{"first sight expired notifies", "", StateExpired, NotifyExpired, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := ShouldNotify(UserStatus{State: tc.previous}, UserStatus{State: tc.current})
			if ok != tc.wantOk || kind != tc.wantKind {
				t.Errorf("ShouldNotify(%q -> %q) = (%q, %v), want (%q, %v)",
					tc.previous, tc.current, kind, ok, tc.wantKind, tc.wantOk)
			}
		})
	}
}

func TestGateSuppressesAlreadyNotified(t *testing.T) {
	gate := Gate{}
	prev := UserStatus{State: StateActive}
	curr := UserStatus{State: StateExpired}

	kind, ok := gate.Evaluate(prev, curr, "")
	if !ok || kind != NotifyExpired {
		t.Fatalf("first evaluation = (%q, %v), want (%q, true)", kind, ok, NotifyExpired)
	}

	// After the transition was recorded, the same observation must not
	// fire again even if the in-memory previous state was lost.
	kind, ok = gate.Evaluate(prev, curr, StateExpired)
	if ok {
		t.Errorf("already-notified evaluation = (%q, %v), want suppressed", kind, ok)
	}
}

func TestGateAllowsNewTransitionAfterRecovery(t *testing.T) {
	gate := Gate{}

	kind, ok := gate.Evaluate(UserStatus{State: StateExpired}, UserStatus{State: StateActive}, StateExpired)
	if !ok || kind != NotifyRestored {
		t.Fatalf("recovery = (%q, %v), want (%q, true)", kind, ok, NotifyRestored)
	}

	kind, ok = gate.Evaluate(UserStatus{State: StateActive}, UserStatus{State: StateExpired}, StateActive)
	if !ok || kind != NotifyExpired {
		t.Fatalf("relapse = (%q, %v), want (%q, true)", kind, ok, NotifyExpired)
	}
}
