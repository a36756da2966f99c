package httpclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindTransient covers rate limiting (429) and server errors (5xx)
	KindTransient Kind = iota + 1
	// KindNetwork covers transport failures and per-attempt timeouts
	KindNetwork
	// KindAuth is a 401 that survived one token refresh
	KindAuth
	// KindAuthFatal means no valid token can be obtained for this invocation
	KindAuthFatal
	// KindClient covers every other 4xx response
	KindClient
	// KindCanceled means the caller's context ended the call
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "authorization"
	case KindAuthFatal:
		return "authorization-fatal"
	case KindClient:
		return "client"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is returned by Client.Do for every unsuccessful call.
type Error struct {
	Kind       Kind
	StatusCode int
	URL        string
	Message    string
	Attempts   int
	Retries    int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d for URL %s: %s (%s, %d attempts)", e.StatusCode, e.URL, e.Message, e.Kind, e.Attempts)
	}
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed (%s, %d attempts): %v", e.URL, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("request to %s failed (%s, %d attempts): %s", e.URL, e.Kind, e.Attempts, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsRetryable reports whether err belongs to a class the client retries.
// A retryable error returned from Do means the retry budget was exhausted.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindNetwork:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err must abort the whole invocation.
func IsFatal(err error) bool {
	return KindOf(err) == KindAuthFatal
}
