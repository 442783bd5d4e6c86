package backend

import (
	"fmt"
)

// AuthError means the caller did not supply the token needed to talk to the backend
type AuthError struct {
	Header string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("missing required header: %s", e.Header)
}

// TransportError covers any failed exchange other than "not found": unexpected status, network failure, unreadable body
type TransportError struct {
	Key        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend read of [%s] failed with status %d: %v", e.Key, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend read of [%s] failed: %v", e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means a payload was found but could not be turned into properties
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable payload at [%s]: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
