// Package httpclient provides the rate-limited HTTP client shared by the source and target API clients.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/stacklok/zoom-search-connector/internal/credentials"
)

const (
	// DefaultTimeout is the default timeout of a single attempt
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the largest response body the client will read (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// UserAgent is sent with every request
	UserAgent = "zoom-search-connector/1.0"

	defaultRetryCount      = 3
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second
)

// Client is the single choke point for outbound HTTP calls
type Client interface {
	// Do sends req, retrying transient failures, and returns the first 2xx response.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TokenSource supplies bearer tokens and refreshes them after a 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// ForceRefresh replaces stale with a new token. Implementations return the current
	// token without refreshing when another caller already replaced stale.
	ForceRefresh(ctx context.Context, stale string) (string, error)
}

// RecordFunc observes the final state of every call.
type RecordFunc func(ctx context.Context, req *Request, state RetryState, err error)

// Request describes one logical call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest returns a request with an empty header set.
func NewRequest(method, url string, body []byte) *Request {
	return &Request{Method: method, URL: url, Header: http.Header{}, Body: body}
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	Retries    int
}

// DefaultClient implements Client on top of net/http
type DefaultClient struct {
	client          *http.Client
	tokens          TokenSource
	headers         http.Header
	limiter         *rate.Limiter
	retryCount      int
	initialInterval time.Duration
	maxInterval     time.Duration
	record          RecordFunc
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithRetryCount sets how many times transient failures are retried.
func WithRetryCount(n int) Option {
	return func(c *DefaultClient) {
		if n >= 0 {
			c.retryCount = n
		}
	}
}

// WithBackoff sets the first delay and the cap of a single delay.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(c *DefaultClient) {
		if initial > 0 {
			c.initialInterval = initial
		}
		if maxInterval > 0 {
			c.maxInterval = maxInterval
		}
	}
}

// WithTokenSource authenticates every request with a refreshable bearer token.
func WithTokenSource(ts TokenSource) Option {
	return func(c *DefaultClient) {
		c.tokens = ts
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *DefaultClient) {
		c.headers.Set(key, value)
	}
}

// WithRateLimit paces attempts to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *DefaultClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithRecorder registers a call observer.
func WithRecorder(fn RecordFunc) Option {
	return func(c *DefaultClient) {
		c.record = fn
	}
}

// NewDefaultClient creates a client whose attempts time out after timeout.
// A zero timeout uses DefaultTimeout.
func NewDefaultClient(timeout time.Duration, opts ...Option) *DefaultClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		headers:         http.Header{},
		retryCount:      defaultRetryCount,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	c.headers.Set("User-Agent", UserAgent)
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and returns the response body.
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, NewRequest(http.MethodGet, url, nil))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do implements Client
func (c *DefaultClient) Do(ctx context.Context, req *Request) (*Response, error) {
	state := &RetryState{Max: c.retryCount}
	b := c.newBackOff()

	var token string
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			state.fail(tokenError(ctx, req.URL, err))
			return nil, c.finish(ctx, req, state)
		}
		token = t
	}

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				state.fail(&Error{Kind: KindCanceled, URL: req.URL, Err: err})
				return nil, c.finish(ctx, req, state)
			}
		}

		state.Attempts++
		resp, err := c.attempt(ctx, req, token)

		switch state.next(ctx, req.URL, resp, err, c.tokens != nil) {
		case outcomeSuccess:
			resp.Attempts = state.Attempts
			resp.Retries = state.Retries
			if c.record != nil {
				c.record(ctx, req, *state, nil)
			}
			return resp, nil

		case outcomeRefresh:
			state.Refreshed = true
			fresh, err := c.tokens.ForceRefresh(ctx, token)
			if err != nil {
				state.fail(tokenError(ctx, req.URL, err))
				return nil, c.finish(ctx, req, state)
			}
			token = fresh

		case outcomeRetry:
			delay, ok := retryAfter(resp, time.Now())
			if !ok {
				delay = b.NextBackOff()
			}
			delay = min(delay, c.maxInterval)
			state.Retries++
			slog.DebugContext(ctx, "Retrying request",
				"method", req.Method,
				"url", req.URL,
				"attempt", state.Attempts,
				"delay", delay,
				"error", state.LastErr)
			if err := sleep(ctx, delay); err != nil {
				state.fail(&Error{Kind: KindCanceled, URL: req.URL, Err: err})
				return nil, c.finish(ctx, req, state)
			}

		case outcomeFatal:
			return nil, c.finish(ctx, req, state)
		}
	}
}

// tokenError classifies a token source failure. Only a refresh token the
// authorization server refuses ends the invocation.
func tokenError(ctx context.Context, url string, err error) *Error {
	switch {
	case errors.Is(err, credentials.ErrRefreshTokenInvalid), errors.Is(err, credentials.ErrNoRefreshToken):
		return &Error{Kind: KindAuthFatal, URL: url, Err: err}
	case ctx.Err() != nil:
		return &Error{Kind: KindCanceled, URL: url, Err: errors.Join(ctx.Err(), err)}
	default:
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
}

func (c *DefaultClient) finish(ctx context.Context, req *Request, state *RetryState) error {
	err := state.err()
	if c.record != nil {
		c.record(ctx, req, *state, err)
	}
	return err
}

func (c *DefaultClient) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}

// attempt sends req once. Non-2xx statuses are returned as responses, not errors.
func (c *DefaultClient) attempt(ctx context.Context, req *Request, token string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindClient, URL: req.URL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for key, values := range c.headers {
		httpReq.Header[key] = values
	}
	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxResponseSize {
		return nil, sizeError(req.URL, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, sizeError(req.URL, int64(len(data)))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func sizeError(url string, size int64) *Error {
	return &Error{
		Kind: KindClient,
		URL:  url,
		Message: fmt.Sprintf("response size (%d bytes) exceeds maximum allowed size of %.2f MB",
			size, float64(MaxResponseSize)/(1024*1024)),
	}
}
