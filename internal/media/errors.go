package media

import (
	"errors"
	"fmt"
)

// AuthenticationError represents a rejected login: 401/403 responses or a
// successful response that lacks the access token or the user id.
type AuthenticationError struct {
	Username string // The user that failed to authenticate
	Reason   string // Human-readable explanation
	Err      error  // Underlying error, if any
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for user '%s': %s", e.Username, e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NetworkError represents transport failures and non-2xx API responses.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "authenticate", "get_items", "grab_stream")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	APIMessage string // Error message from the API or network layer
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}
	return fmt.Sprintf("network error during %s: %s", e.Operation, e.APIMessage)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// WriteError represents a local filesystem failure while storing an item.
type WriteError struct {
	Path string // Destination file
	Op   string // "create", "write" or "close"
	Err  error  // Underlying error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FailureKind discriminates why an operation failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureAuth
	FailureTransport
	FailureIO
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureAuth:
		return "auth_failed"
	case FailureTransport:
		return "transport_error"
	case FailureIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// Classify maps an error chain to its FailureKind. Authentication errors win over
// the network errors they wrap. Unrecognized errors are reported as transport errors.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return FailureAuth
	}

	var writeErr *WriteError
	if errors.As(err, &writeErr) {
		return FailureIO
	}

	return FailureTransport
}
