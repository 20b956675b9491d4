package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned when a request carries no Bearer token.
	ErrMissingCredential = errors.New("missing authorization token")
	// ErrInvalidCredential is returned when the Bearer token does not match.
	ErrInvalidCredential = errors.New("invalid token")
	// ErrNotConnected is wrapped in a TransportError when the session is down.
	ErrNotConnected = errors.New("session not connected")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ChatNotFoundError is returned when the network rejects a chat target.
type ChatNotFoundError struct {
	Handle ChatHandle
}

func (e *ChatNotFoundError) Error() string {
	return fmt.Sprintf("chat not found: %s", e.Handle)
}

// TransportError wraps a failed session engine command.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeliveryError reports a backend webhook call that failed or was rejected.
// StatusCode is zero for network failures.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend delivery: %v", e.Err)
	}
	return fmt.Sprintf("backend delivery: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsChatNotFound reports whether err carries a ChatNotFoundError.
func IsChatNotFound(err error) bool {
	var nf *ChatNotFoundError
	return errors.As(err, &nf)
}
