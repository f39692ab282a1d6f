// Package xui is the HTTP client for an X-UI panel: cookie-session
// management against /login and paginated client traffic retrieval.
package xui

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Credentials identify the panel account the bot acts as. Immutable
// after construction.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
	Insecure bool // allow self-signed panel certificates
}

// Session is one authenticated panel session. Owned exclusively by the
// SessionManager that created it.
type Session struct {
	Cookie    *http.Cookie
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the session is usable at time now, with skew
// subtracted so callers never race the panel-side expiry.
func (s *Session) Valid(now time.Time, skew time.Duration) bool {
	return s != nil && now.Before(s.ExpiresAt.Add(-skew))
}

const (
	defaultSessionTTL  = 55 * time.Minute
	defaultExpirySkew  = 30 * time.Second
	sessionCookieName  = "3x-ui"
	fallbackCookieName = "session"
)

// SessionManager owns the panel session. Safe for concurrent use: the
// mutex guards authentication only, fetch calls never serialize on it.
type SessionManager struct {
	creds  Credentials
	client *http.Client
	policy RetryPolicy
	ttl    time.Duration
	skew   time.Duration

	mu      sync.Mutex
	session *Session

	now func() time.Time
}

func NewSessionManager(creds Credentials, timeout time.Duration, policy RetryPolicy) *SessionManager {
	transport := &http.Transport{}
	if creds.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &SessionManager{
		creds:  creds,
		client: &http.Client{Timeout: timeout, Transport: transport},
		policy: policy,
		ttl:    defaultSessionTTL,
		skew:   defaultExpirySkew,
		now:    time.Now,
	}
}

// EnsureValid returns the cached session while it is inside the
// validity window, re-authenticating otherwise. Only one
// authentication attempt is ever in flight per manager.
func (m *SessionManager) EnsureValid(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Valid(m.now(), m.skew) {
		return m.session, nil
	}

	sess, err := m.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	m.session = sess
	return sess, nil
}

// Invalidate drops the cached session if it is the one the caller was
// issued. Called after a request came back 401 so the next EnsureValid
// re-authenticates instead of serving the dead cookie again.
func (m *SessionManager) Invalidate(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == s {
		m.session = nil
	}
}

// Authenticate forces a fresh login regardless of the cached session.
func (m *SessionManager) Authenticate(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	m.session = sess
	return sess, nil
}

// authenticate performs the login call. Callers must hold m.mu.
func (m *SessionManager) authenticate(ctx context.Context) (*Session, error) {
	var sess *Session
	err := m.policy.Do(ctx, func() error {
		s, err := m.login(ctx)
		if err != nil {
			return err
		}
		sess = s
		return nil
	})
	return sess, err
}

func (m *SessionManager) login(ctx context.Context) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"username": m.creds.Username,
		"password": m.creds.Password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.creds.BaseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Op: "login", Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransientError{Op: "login", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var envelope struct {
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &TransientError{Op: "login", Err: fmt.Errorf("decode response: %w", err)}
	}
	if !envelope.Success {
		return nil, &AuthError{Op: "login"}
	}

	cookie := sessionCookie(resp.Cookies())
	if cookie == nil {
		return nil, &AuthError{Op: "login"}
	}

	now := m.now()
	expires := cookie.Expires
	if expires.IsZero() {
		expires = now.Add(m.ttl)
	}
	return &Session{Cookie: cookie, IssuedAt: now, ExpiresAt: expires}, nil
}

// sessionCookie picks the panel session cookie out of the login
// response. 3x-ui names it "3x-ui", older panels use "session".
func sessionCookie(cookies []*http.Cookie) *http.Cookie {
	var fallback *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case sessionCookieName:
			return c
		case fallbackCookieName:
			fallback = c
		}
	}
	if fallback != nil {
		return fallback
	}
	if len(cookies) > 0 {
		return cookies[0]
	}
	return nil
}
