package model

import "fmt"

// AuthError reports a failure to obtain or set up OAuth credentials.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a failed call to the remote mail provider.
// MessageID is empty for listing failures.
type TransportError struct {
	Op        string
	MessageID string
	Err       error
}

func (e *TransportError) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("%s message %s: %v", e.Op, e.MessageID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
