package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/stacklok/zoom-search-connector/internal/config"
	"github.com/stacklok/zoom-search-connector/internal/credentials"
	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/identity"
	"github.com/stacklok/zoom-search-connector/internal/search"
	"github.com/stacklok/zoom-search-connector/internal/status"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
	"github.com/stacklok/zoom-search-connector/internal/sync/state"
	"github.com/stacklok/zoom-search-connector/internal/telemetry"
	"github.com/stacklok/zoom-search-connector/internal/versions"
	"github.com/stacklok/zoom-search-connector/internal/zoom"
)

// syncTracerName names the tracer of sync run spans
const syncTracerName = "github.com/stacklok/zoom-search-connector/sync"

// runtime holds the components shared by the sync and schedule commands
type runtime struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	store     state.Store
	status    status.Persistence
	manager   pkgsync.Manager
	logFile   io.Closer
}

// newRuntime wires the sync manager and its collaborators from cfg.
func newRuntime(ctx context.Context, cfg *config.Config, dryRun bool) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, logFile: addLogFile(cfg.Logging, os.Stderr)}
	defer func() {
		if err != nil {
			rt.close(context.WithoutCancel(ctx))
		}
	}()

	telCfg := cfg.Telemetry
	if telCfg != nil && telCfg.ServiceVersion == "" {
		c := *telCfg
		c.ServiceVersion = versions.Version
		telCfg = &c
	}
	rt.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(telCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	clientMetrics, err := telemetry.NewClientMetrics(rt.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create client metrics: %w", err)
	}
	syncMetrics, err := telemetry.NewSyncMetrics(rt.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	source, err := newZoomClient(cfg, clientMetrics)
	if err != nil {
		return nil, err
	}
	target, err := newSearchClient(cfg, clientMetrics)
	if err != nil {
		return nil, err
	}

	mapper, err := loadIdentity(cfg)
	if err != nil {
		return nil, err
	}

	settings, err := pkgsync.SettingsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid object configuration: %w", err)
	}
	settings.DryRun = dryRun

	rt.store, err = state.NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	rt.status = status.NewFilePersistence(cfg.GetStatusPath())

	rt.manager = pkgsync.NewManager(source, target, rt.store, settings,
		pkgsync.WithStatus(rt.status),
		pkgsync.WithMetrics(syncMetrics),
		pkgsync.WithTracer(rt.telemetry.Tracer(syncTracerName)),
		pkgsync.WithIdentity(mapper),
	)
	return rt, nil
}

func newZoomClient(cfg *config.Config, metrics *telemetry.ClientMetrics) (*zoom.Client, error) {
	secret, err := cfg.Zoom.GetClientSecret()
	if err != nil {
		return nil, err
	}
	creds, err := credentials.NewManager(credentials.Config{
		ClientID:      cfg.Zoom.ClientID,
		ClientSecret:  secret,
		TokenURL:      cfg.Zoom.GetTokenURL(),
		RefreshToken:  cfg.Zoom.GetRefreshToken(),
		RetryCount:    cfg.GetRetryCount(),
		RetryInterval: cfg.GetRetryBaseInterval(),
		Store:         credentials.NewFileTokenStore(cfg.Zoom.GetTokenStorePath()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credential manager: %w", err)
	}

	hc := httpclient.NewDefaultClient(cfg.GetRequestTimeout(),
		httpclient.WithRetryCount(cfg.GetRetryCount()),
		httpclient.WithBackoff(cfg.GetRetryBaseInterval(), cfg.GetRetryMaxInterval()),
		httpclient.WithTokenSource(creds),
		httpclient.WithRateLimit(cfg.Zoom.GetRequestsPerSecond(), 1),
		httpclient.WithRecorder(metrics.Recorder("zoom")),
	)
	return zoom.NewClient(hc, cfg.Zoom.GetAPIBaseURL()), nil
}

func newSearchClient(cfg *config.Config, metrics *telemetry.ClientMetrics) (*search.Client, error) {
	key, err := cfg.WorkplaceSearch.GetAPIKey()
	if err != nil {
		return nil, err
	}
	hc := httpclient.NewDefaultClient(cfg.GetRequestTimeout(),
		httpclient.WithRetryCount(cfg.GetRetryCount()),
		httpclient.WithBackoff(cfg.GetRetryBaseInterval(), cfg.GetRetryMaxInterval()),
		httpclient.WithHeader("Authorization", "Bearer "+key),
		httpclient.WithRateLimit(cfg.WorkplaceSearch.RequestsPerSecond, 1),
		httpclient.WithRecorder(metrics.Recorder("workplace_search")),
	)
	return search.NewClient(hc, cfg.WorkplaceSearch.HostURL, cfg.WorkplaceSearch.SourceID), nil
}

// loadIdentity reads the user mapping. A missing table is not fatal here: documents
// are tagged with read privileges only and permission sync reports the gap.
func loadIdentity(cfg *config.Config) (*identity.Mapper, error) {
	if !cfg.PermissionsEnabled() {
		return nil, nil
	}
	mapper, err := identity.Load(cfg.Zoom.UserMapping)
	if errors.Is(err, identity.ErrEmptyMapping) {
		slog.Warn("No user mapping loaded, documents will carry read privileges only", "path", cfg.Zoom.UserMapping)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded user mapping", "path", cfg.Zoom.UserMapping, "users", mapper.Len())
	return mapper, nil
}

func (rt *runtime) close(ctx context.Context) {
	if rt.store != nil {
		if err := rt.store.Close(ctx); err != nil {
			slog.Error("Failed to close state store", "error", err)
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}
