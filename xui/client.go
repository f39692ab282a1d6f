package xui

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// RawClientRecord is one panel client's usage snapshot as reported by
// the clientTraffics endpoint. Transient, produced per fetch.
type RawClientRecord struct {
	ClientID      string `json:"id"`
	Email         string `json:"email"`
	UploadBytes   int64  `json:"up"`
	DownloadBytes int64  `json:"down"`
	Enabled       bool   `json:"enable"`
	ExpiryTime    int64  `json:"expiryTime"` // unix ms, 0 = never
	TotalBytes    int64  `json:"total"`      // panel-side cap, 0 = unlimited
}

// RawTotal is the panel's cumulative byte counter for the record.
func (r RawClientRecord) RawTotal() int64 {
	return r.UploadBytes + r.DownloadBytes
}

type envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// Client retrieves usage records from the panel through a
// SessionManager-owned session.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionManager
	policy   RetryPolicy
	pageSize int
}

func NewClient(creds Credentials, sessions *SessionManager, policy RetryPolicy, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:  creds.BaseURL,
		http:     sessions.client,
		sessions: sessions,
		policy:   policy,
		pageSize: pageSize,
	}
}

// FetchAll pulls every client record, page by page. A failing page is
// retried alone under the client's retry policy; duplicates across
// pages collapse with the last-seen record winning.
func (c *Client) FetchAll(ctx context.Context) ([]RawClientRecord, error) {
	seen := make(map[string]int)
	var records []RawClientRecord

	for page := 1; ; page++ {
		var pageRecords []RawClientRecord
		err := c.policy.Do(ctx, func() error {
			var err error
			pageRecords, err = c.fetchPage(ctx, page)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, rec := range pageRecords {
			if idx, ok := seen[rec.ClientID]; ok {
				records[idx] = rec
				continue
			}
			seen[rec.ClientID] = len(records)
			records = append(records, rec)
		}

		if len(pageRecords) < c.pageSize {
			return records, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]RawClientRecord, error) {
	path := fmt.Sprintf("/panel/api/inbounds/clientTraffics?page=%d&size=%d", page, c.pageSize)
	var records []RawClientRecord
	if err := c.requestJSON(ctx, http.MethodGet, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchOnlines returns the emails of clients the panel currently sees
// online.
func (c *Client) FetchOnlines(ctx context.Context) ([]string, error) {
	var emails []string
	err := c.policy.Do(ctx, func() error {
		emails = emails[:0]
		return c.requestJSON(ctx, http.MethodPost, "/panel/api/inbounds/onlines", &emails)
	})
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// requestJSON performs an authenticated call and decodes the envelope's
// obj into out. A 401 answer triggers exactly one re-authentication and
// retry before surfacing an AuthError.
func (c *Client) requestJSON(ctx context.Context, method, path string, out any) error {
	sess, err := c.sessions.EnsureValid(ctx)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, method, path, sess)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.sessions.Invalidate(sess)

		sess, err = c.sessions.EnsureValid(ctx)
		if err != nil {
			return err
		}
		resp, err = c.do(ctx, method, path, sess)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return &AuthError{Op: path, Status: http.StatusUnauthorized}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransientError{Op: path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &TransientError{Op: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.Success {
		return fmt.Errorf("panel refused %s: %s", path, env.Msg)
	}
	if out == nil || len(env.Obj) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Obj, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, sess *Session) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(sess.Cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: path, Err: err}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
