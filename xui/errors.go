package xui

import "fmt"

// AuthError means the panel rejected our credentials or kept answering
// 401 after a re-authentication. Not retried beyond the single re-auth
// attempt.
type AuthError struct {
	Op     string
	Status int
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("panel auth failed during %s (status %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("panel auth failed during %s", e.Op)
}

// TransientError wraps a network-level failure (timeout, refused
// connection, 5xx). Eligible for retry with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("panel request %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
