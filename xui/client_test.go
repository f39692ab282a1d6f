package xui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// fakePanel serves /login and the paginated clientTraffics endpoint the
// way a real panel does, with per-test hooks for failure injection.
type fakePanel struct {
	t        *testing.T
	pages    [][]RawClientRecord
	onlines  []string
	pageSize int

	logins   int
	requests int

	// beforeTraffic may hijack a traffic request; returning true means
	// the hook already wrote the response.
	beforeTraffic func(w http.ResponseWriter, n int) bool
}

func (p *fakePanel) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			p.logins++
			http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: fmt.Sprintf("tok%d", p.logins)})
			w.Write([]byte(`{"success":true}`))
		case "/panel/api/inbounds/clientTraffics":
			p.requests++
			if p.beforeTraffic != nil && p.beforeTraffic(w, p.requests) {
				return
			}
			page := 0
			fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
			var records []RawClientRecord
			if page >= 1 && page <= len(p.pages) {
				records = p.pages[page-1]
			}
			obj, _ := json.Marshal(records)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"success":true,"msg":"","obj":%s}`, obj)
		case "/panel/api/inbounds/onlines":
			if r.Method != http.MethodPost {
				p.t.Errorf("onlines called with %s, want POST", r.Method)
			}
			obj, _ := json.Marshal(p.onlines)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"success":true,"msg":"","obj":%s}`, obj)
		default:
			p.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(srvURL string, pageSize int) (*Client, *SessionManager) {
	creds := Credentials{BaseURL: srvURL, Username: "admin", Password: "admin"}
	sessions := NewSessionManager(creds, 5*time.Second, fastPolicy(3))
	return NewClient(creds, sessions, fastPolicy(3), pageSize), sessions
}

func rec(id string, down int64) RawClientRecord {
	return RawClientRecord{ClientID: id, Email: id + "@panel", Enabled: true, DownloadBytes: down}
}

func TestFetchAllPaginates(t *testing.T) {
	panel := &fakePanel{
		t: t,
		pages: [][]RawClientRecord{
			{rec("a", 1), rec("b", 2)},
			{rec("c", 3)},
		},
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	records, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i].ClientID != want {
			t.Errorf("records[%d].ClientID = %q, want %q", i, records[i].ClientID, want)
		}
	}
	if panel.logins != 1 {
		t.Errorf("logins = %d, want 1", panel.logins)
	}
}

func TestFetchAllDeduplicatesLastWins(t *testing.T) {
	panel := &fakePanel{
		t: t,
		pages: [][]RawClientRecord{
			{rec("a", 1), rec("b", 2)},
			{rec("a", 9)},
		},
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	records, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ClientID != "a" || records[0].DownloadBytes != 9 {
		t.Errorf("duplicate did not take the last-seen record: %+v", records[0])
	}
}

func TestFetchAllRetriesFailedPage(t *testing.T) {
	panel := &fakePanel{
		t:     t,
		pages: [][]RawClientRecord{{rec("a", 1)}},
	}
	panel.beforeTraffic = func(w http.ResponseWriter, n int) bool {
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	records, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if panel.requests != 2 {
		t.Errorf("traffic requests = %d, want 2", panel.requests)
	}
}

func TestFetchAllReauthenticatesOn401(t *testing.T) {
	panel := &fakePanel{
		t:     t,
		pages: [][]RawClientRecord{{rec("a", 1)}},
	}
	panel.beforeTraffic = func(w http.ResponseWriter, n int) bool {
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return true
		}
		return false
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	records, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if panel.logins != 2 {
		t.Errorf("logins = %d, want 2 (one re-auth after the 401)", panel.logins)
	}
}

func TestFetchAllPersistent401IsAuthError(t *testing.T) {
	panel := &fakePanel{t: t}
	panel.beforeTraffic = func(w http.ResponseWriter, n int) bool {
		w.WriteHeader(http.StatusUnauthorized)
		return true
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	_, err := client.FetchAll(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("FetchAll() error = %v, want *AuthError", err)
	}
}

func TestFetchOnlines(t *testing.T) {
	panel := &fakePanel{
		t:       t,
		onlines: []string{"a@panel", "c@panel"},
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	emails, err := client.FetchOnlines(context.Background())
	if err != nil {
		t.Fatalf("FetchOnlines() error = %v", err)
	}
	if len(emails) != 2 || emails[0] != "a@panel" || emails[1] != "c@panel" {
		t.Errorf("FetchOnlines() = %v, want [a@panel c@panel]", emails)
	}
}

func TestFetchAllPanelRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "tok"})
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false,"msg":"database locked"}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 2)
	_, err := client.FetchAll(context.Background())
	if err == nil {
		t.Fatal("FetchAll() error = nil, want refusal error")
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		t.Errorf("panel refusal must not be transient: %v", err)
	}
}
