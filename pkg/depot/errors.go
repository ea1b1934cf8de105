package depot

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for failure classification. Use errors.Is to check, e.g.
// errors.Is(err, depot.ErrRequest).
var (
	// ErrProtocol indicates a well-formed response was missing an expected
	// field (e.g. no anti-forgery token in the CSRF body).
	ErrProtocol = errors.New("depot: protocol error")

	// ErrAuthentication indicates the credential exchange completed but no
	// session token could be extracted.
	ErrAuthentication = errors.New("depot: authentication failed")

	// ErrPrecondition indicates a data operation was attempted before login
	// and/or bucket selection.
	ErrPrecondition = errors.New("depot: client not ready")

	// ErrTransport indicates the network call itself failed without a
	// response.
	ErrTransport = errors.New("depot: transport failure")

	// ErrRequest indicates a response was obtained but its status code
	// signals failure.
	ErrRequest = errors.New("depot: request failed")
)

// TransportError wraps a network-level failure (connection refused, timeout,
// canceled context). Matches ErrTransport and unwraps to the underlying
// error.
type TransportError struct {
	Op  string // "GET /api/v2/file/b/p"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("depot: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RequestError wraps a non-2xx response, including a 401 that persisted
// through the single re-login attempt. Body carries a best-effort string of
// the response payload for diagnosis.
type RequestError struct {
	StatusCode int
	Body       string
	Header     http.Header
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("depot: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *RequestError) Is(target error) bool { return target == ErrRequest }
