package service

import "testing"

func TestSettingDefaults(t *testing.T) {
	s := SettingService{}

	notifications, err := s.GetNotificationsEnabled()
	if err != nil {
		t.Fatalf("GetNotificationsEnabled() error = %v", err)
	}
	if !notifications {
		t.Error("notifications default = false, want true")
	}

	paused, err := s.GetPollPaused()
	if err != nil {
		t.Fatalf("GetPollPaused() error = %v", err)
	}
	if paused {
		t.Error("pollPaused default = true, want false")
	}
}

func TestSettingToggleRoundTrip(t *testing.T) {
	s := SettingService{}

	if err := s.SetNotificationsEnabled(false); err != nil {
		t.Fatalf("SetNotificationsEnabled() error = %v", err)
	}
	got, err := s.GetNotificationsEnabled()
	if err != nil {
		t.Fatalf("GetNotificationsEnabled() error = %v", err)
	}
	if got {
		t.Error("notifications = true after disabling")
	}

	if err := s.SetNotificationsEnabled(true); err != nil {
		t.Fatalf("SetNotificationsEnabled() error = %v", err)
	}
	got, err = s.GetNotificationsEnabled()
	if err != nil {
		t.Fatalf("GetNotificationsEnabled() error = %v", err)
	}
	if !got {
		t.Error("notifications = false after re-enabling")
	}
}
