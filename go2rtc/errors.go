package go2rtc

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a client failure.
type Kind int

const (
	// KindConnection means the server could not be reached at all.
	KindConnection Kind = iota + 1
	// KindClient means the server rejected the request (HTTP 4xx).
	KindClient
	// KindServer means the server failed (HTTP 5xx) or reported an error
	// over the signaling channel.
	KindServer
	// KindDecode means a response did not match the expected shape.
	KindDecode
	// KindTimeout means the signaling answer did not arrive in time.
	KindTimeout
	// KindVersion means the server version is outside the supported range.
	KindVersion
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	case KindTimeout:
		return "timeout"
	case KindVersion:
		return "version"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every client operation.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, when applicable
	Body   string // raw response body, when applicable
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("go2rtc: %s error: http %d: %s", e.Kind, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("go2rtc: %s error: http %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("go2rtc: %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("go2rtc: %s error", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// statusError maps a non-2xx HTTP response to a typed error.
func statusError(status int, body []byte) *Error {
	kind := KindClient
	if status >= http.StatusInternalServerError {
		kind = KindServer
	}
	return &Error{Kind: kind, Status: status, Body: string(body)}
}

// IsNotFound reports whether err is a client error with HTTP status 404.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// IsTimeout reports whether err is a signaling timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTimeout
}
