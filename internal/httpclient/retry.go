package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// outcome is the decision taken after one attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeRefresh
	outcomeFatal
)

// RetryState tracks one call across its attempts.
type RetryState struct {
	// Attempts counts every request sent, including the post-refresh retry.
	Attempts int
	// Retries counts backoff retries only.
	Retries   int
	Max       int
	Refreshed bool
	LastErr   *Error
}

// next classifies the result of the latest attempt and records the failure.
func (s *RetryState) next(ctx context.Context, url string, resp *Response, err error, canRefresh bool) outcome {
	if err != nil {
		if ctx.Err() != nil {
			s.fail(&Error{Kind: KindCanceled, URL: url, Err: errors.Join(ctx.Err(), err)})
			return outcomeFatal
		}
		var httpErr *Error
		if errors.As(err, &httpErr) {
			s.fail(httpErr)
			return outcomeFatal
		}
		s.fail(&Error{Kind: KindNetwork, URL: url, Err: err})
		return s.retryOrStop()
	}

	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return outcomeSuccess
	case code == http.StatusTooManyRequests || code >= 500:
		s.fail(&Error{Kind: KindTransient, StatusCode: code, URL: url, Message: statusMessage(resp)})
		return s.retryOrStop()
	case code == http.StatusUnauthorized:
		s.fail(&Error{Kind: KindAuth, StatusCode: code, URL: url, Message: statusMessage(resp)})
		if canRefresh && !s.Refreshed {
			return outcomeRefresh
		}
		return outcomeFatal
	default:
		s.fail(&Error{Kind: KindClient, StatusCode: code, URL: url, Message: statusMessage(resp)})
		return outcomeFatal
	}
}

func (s *RetryState) retryOrStop() outcome {
	if s.Retries < s.Max {
		return outcomeRetry
	}
	return outcomeFatal
}

func (s *RetryState) fail(err *Error) {
	s.LastErr = err
}

// err returns the final error of the call with the attempt counters filled in.
func (s *RetryState) err() *Error {
	if s.LastErr == nil {
		return nil
	}
	out := *s.LastErr
	out.Attempts = s.Attempts
	out.Retries = s.Retries
	return &out
}

func statusMessage(resp *Response) string {
	msg := http.StatusText(resp.StatusCode)
	if len(resp.Body) > 0 {
		body := resp.Body
		if len(body) > 256 {
			body = body[:256]
		}
		msg += ": " + string(body)
	}
	return msg
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(resp *Response, now time.Time) (time.Duration, bool) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
