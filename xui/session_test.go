package xui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func loginHandler(t *testing.T, logins *int, cookieName string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		*logins++
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "tok", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"msg":""}`))
	}
}

func testManager(srvURL string) *SessionManager {
	creds := Credentials{BaseURL: srvURL, Username: "admin", Password: "admin"}
	return NewSessionManager(creds, 5*time.Second, fastPolicy(3))
}

func TestSessionValidSkew(t *testing.T) {
	now := time.Now()
	sess := &Session{ExpiresAt: now.Add(time.Minute)}

	if !sess.Valid(now, 30*time.Second) {
		t.Error("session inside the window reported invalid")
	}
	if sess.Valid(now, 2*time.Minute) {
		t.Error("session inside the skew margin reported valid")
	}

	var nilSess *Session
	if nilSess.Valid(now, 0) {
		t.Error("nil session reported valid")
	}
}

func TestEnsureValidCachesSession(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(loginHandler(t, &logins, sessionCookieName))
	defer srv.Close()

	m := testManager(srv.URL)
	ctx := context.Background()

	first, err := m.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	second, err := m.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	if first != second {
		t.Error("valid session was not reused")
	}
	if logins != 1 {
		t.Errorf("logins = %d, want 1", logins)
	}
}

func TestInvalidateForcesReauth(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(loginHandler(t, &logins, sessionCookieName))
	defer srv.Close()

	m := testManager(srv.URL)
	ctx := context.Background()

	sess, err := m.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	m.Invalidate(sess)

	if _, err := m.EnsureValid(ctx); err != nil {
		t.Fatalf("EnsureValid() after Invalidate error = %v", err)
	}
	if logins != 2 {
		t.Errorf("logins = %d, want 2", logins)
	}
}

func TestInvalidateIgnoresStaleSession(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(loginHandler(t, &logins, sessionCookieName))
	defer srv.Close()

	m := testManager(srv.URL)
	ctx := context.Background()

	if _, err := m.EnsureValid(ctx); err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}

	// Invalidating a session the manager no longer holds must not drop
	// the current one.
	m.Invalidate(&Session{})
	if _, err := m.EnsureValid(ctx); err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	if logins != 1 {
		t.Errorf("logins = %d, want 1", logins)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := testManager(srv.URL)
	_, err := m.EnsureValid(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("EnsureValid() error = %v, want *AuthError", err)
	}
	if logins != 1 {
		t.Errorf("logins = %d, want 1 (rejected credentials must not be retried)", logins)
	}
}

func TestLoginRejectedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"msg":"wrong password"}`))
	}))
	defer srv.Close()

	m := testManager(srv.URL)
	_, err := m.EnsureValid(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("EnsureValid() error = %v, want *AuthError", err)
	}
}

func TestLoginFallbackCookieName(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(loginHandler(t, &logins, fallbackCookieName))
	defer srv.Close()

	m := testManager(srv.URL)
	sess, err := m.EnsureValid(context.Background())
	if err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	if sess.Cookie.Name != fallbackCookieName {
		t.Errorf("cookie name = %q, want %q", sess.Cookie.Name, fallbackCookieName)
	}
}

func TestLoginRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "tok"})
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	m := testManager(srv.URL)
	if _, err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
