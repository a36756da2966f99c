package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/zoom-search-connector/internal/status"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
	"github.com/stacklok/zoom-search-connector/internal/sync/coordinator"
	"github.com/stacklok/zoom-search-connector/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 10 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func newScheduleCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run sync modes on their configured intervals",
		Long: `Run every sync mode that has an interval under schedule in the configuration, one
run at a time. A status server exposes /health, /status and, when Prometheus metrics are
enabled, /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			address, err := cmd.Flags().GetString("address")
			if err != nil {
				return err
			}
			return runSchedule(v, address)
		},
	}
	cmd.Flags().String("address", ":8080", "Address of the status server (empty disables it)")
	return cmd
}

func runSchedule(v *viper.Viper, address string) error {
	ctx := context.Background()
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	syncCoordinator := coordinator.New(rt.manager, rt.status, cfg)
	coordErr := make(chan error, 1)
	go func() {
		coordErr <- syncCoordinator.Start(ctx)
	}()

	var server *http.Server
	if address != "" {
		router, err := newStatusRouter(rt)
		if err != nil {
			return err
		}
		server = &http.Server{
			Addr:         address,
			Handler:      router,
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
			IdleTimeout:  serverIdleTimeout,
		}
		go func() {
			slog.Info("Status server listening", "address", address)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Status server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("Shutting down scheduler...")
	case err := <-coordErr:
		if err != nil {
			return fmt.Errorf("sync coordinator stopped: %w", err)
		}
	}

	if err := syncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server forced to shutdown: %w", err)
		}
	}
	slog.Info("Scheduler shutdown complete")
	return nil
}

// newStatusRouter serves liveness, the last run summaries and Prometheus metrics.
func newStatusRouter(rt *runtime) (http.Handler, error) {
	httpMetrics, err := telemetry.NewHTTPMetrics(rt.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create http metrics: %w", err)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(serverRequestTimeout),
		telemetry.TracingMiddleware(rt.telemetry.TracerProvider()),
		httpMetrics.Middleware,
	)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", statusHandler(rt.status, ""))
	r.Get("/status/{mode}", func(w http.ResponseWriter, req *http.Request) {
		statusHandler(rt.status, chi.URLParam(req, "mode"))(w, req)
	})
	if h := rt.telemetry.MetricsHandler(); h != nil {
		r.Method(http.MethodGet, "/metrics", h)
	}
	return r, nil
}

// statusHandler writes the last summary of mode, or of every mode when mode is empty.
func statusHandler(p status.Persistence, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body any
		if mode == "" {
			all, err := p.LoadAll(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			body = all
		} else {
			if _, err := pkgsync.ParseMode(mode); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			summary, err := p.LoadSummary(r.Context(), mode)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if summary == nil {
				http.Error(w, fmt.Sprintf("no run recorded for mode %q", mode), http.StatusNotFound)
				return
			}
			body = summary
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("Failed to encode status", "error", err)
		}
	}
}
