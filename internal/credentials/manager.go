// Package credentials owns the OAuth token pair used to call the source API.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrRefreshTokenInvalid means the refresh token was rejected and the app must be re-authorized.
var ErrRefreshTokenInvalid = errors.New("refresh token is invalid or revoked")

// ErrNoRefreshToken means neither the configuration nor the token store holds a refresh token.
var ErrNoRefreshToken = errors.New("no refresh token configured")

// expiryDelta refreshes tokens slightly before they expire.
const expiryDelta = time.Minute

// Config holds the settings of a Manager
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// RefreshToken is the bootstrap refresh token from the configuration.
	RefreshToken string
	// RetryCount bounds retries of transient refresh failures.
	RetryCount int
	// RetryInterval is the first delay between refresh attempts.
	RetryInterval time.Duration
	// HTTPClient is used for token requests. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Store persists rotated tokens. Nil disables persistence.
	Store TokenStore
}

// Manager hands out access tokens and serializes refreshes.
// It implements httpclient.TokenSource.
type Manager struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	store      TokenStore
	seed       string
	retryCount int
	retryBase  time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token

	group singleflight.Group
}

// NewManager creates a Manager, preferring a persisted token pair that descends
// from the configured refresh token.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client id and client secret are required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retryBase := cfg.RetryInterval
	if retryBase <= 0 {
		retryBase = time.Second
	}

	m := &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
		store:      cfg.Store,
		seed:       seedOf(cfg.RefreshToken),
		retryCount: max(cfg.RetryCount, 0),
		retryBase:  retryBase,
		now:        time.Now,
		token:      &oauth2.Token{RefreshToken: cfg.RefreshToken},
	}

	if m.store != nil {
		stored, err := m.store.Load()
		if err != nil {
			slog.Warn("Ignoring unreadable token store", "error", err)
		} else if stored != nil && stored.RefreshToken != "" && (m.seed == "" || stored.Seed == m.seed) {
			m.token = stored.oauthToken()
		}
	}

	if m.token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return m, nil
}

// Token returns a valid access token, refreshing it when it is missing or about to expire.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()

	if m.valid(tok) {
		return tok.AccessToken, nil
	}
	return m.refresh(ctx, tok.AccessToken)
}

// ForceRefresh replaces stale after the source rejected it. When another caller
// already replaced stale the current token is returned as is.
func (m *Manager) ForceRefresh(ctx context.Context, stale string) (string, error) {
	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()

	if tok.AccessToken != stale && m.valid(tok) {
		return tok.AccessToken, nil
	}
	return m.refresh(ctx, stale)
}

func (m *Manager) valid(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || m.now().Add(expiryDelta).Before(tok.Expiry)
}

// refresh runs at most one token request at a time; concurrent callers share its result.
func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	ch := m.group.DoChan("refresh", func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), stale)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, stale string) (string, error) {
	m.mu.RLock()
	current := m.token
	m.mu.RUnlock()
	if current.AccessToken != stale && m.valid(current) {
		return current.AccessToken, nil
	}

	// Another invocation sharing the store may have rotated the pair already.
	if adopted := m.adoptStored(stale); adopted != nil {
		current = adopted
		if m.valid(adopted) {
			return adopted.AccessToken, nil
		}
	}

	refreshToken := current.RefreshToken
	op := func() (*oauth2.Token, error) {
		reqCtx := context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
		tok, err := m.oauth.TokenSource(reqCtx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return nil, classifyRefreshError(err)
		}
		return tok, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retryBase
	b.Reset()

	tok, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(m.retryCount+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.WarnContext(ctx, "Token refresh failed, retrying", "error", err, "delay", d)
		}))
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	slog.InfoContext(ctx, "Refreshed access token", "expiry", tok.Expiry)
	m.persist(tok)
	return tok.AccessToken, nil
}

func (m *Manager) adoptStored(stale string) *oauth2.Token {
	if m.store == nil {
		return nil
	}
	stored, err := m.store.Load()
	if err != nil || stored == nil || stored.RefreshToken == "" {
		return nil
	}
	if m.seed != "" && stored.Seed != m.seed {
		return nil
	}
	if stored.AccessToken == stale {
		return nil
	}
	tok := stored.oauthToken()
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
	return tok
}

func (m *Manager) persist(tok *oauth2.Token) {
	if m.store == nil {
		return
	}
	err := m.store.Save(&StoredToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Seed:         m.seed,
	})
	if err != nil {
		slog.Warn("Failed to persist rotated token", "error", err)
	}
}

// classifyRefreshError marks rejected refresh tokens and client errors as permanent.
func classifyRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}
	code := re.Response.StatusCode
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnauthorized:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrRefreshTokenInvalid, refreshReason(re)))
	case code == http.StatusTooManyRequests || code >= 500:
		return err
	default:
		return backoff.Permanent(err)
	}
}

func refreshReason(re *oauth2.RetrieveError) string {
	if re.ErrorDescription != "" {
		return re.ErrorDescription
	}
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	return re.Response.Status
}

func (t *StoredToken) oauthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		TokenType:    "Bearer",
	}
}
