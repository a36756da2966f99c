package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/zoom-search-connector/internal/config"
	"github.com/stacklok/zoom-search-connector/internal/identity"
	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/otel"
	"github.com/stacklok/zoom-search-connector/internal/search"
	"github.com/stacklok/zoom-search-connector/internal/status"
	"github.com/stacklok/zoom-search-connector/internal/sync/extract"
	"github.com/stacklok/zoom-search-connector/internal/sync/state"
	"github.com/stacklok/zoom-search-connector/internal/sync/writer"
	"github.com/stacklok/zoom-search-connector/internal/telemetry"
	"github.com/stacklok/zoom-search-connector/internal/transform"
	"github.com/stacklok/zoom-search-connector/internal/versions"
)

// Mode selects which records a run touches
type Mode string

// Sync modes
const (
	ModeIncremental Mode = "incremental"
	ModeFull        Mode = "full"
	ModeDeletion    Mode = "deletion"
	ModePermission  Mode = "permission"
)

// Modes returns every sync mode
func Modes() []Mode {
	return []Mode{ModeIncremental, ModeFull, ModeDeletion, ModePermission}
}

// ParseMode converts a mode name into a Mode
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !slices.Contains(Modes(), m) {
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
	return m, nil
}

// Source enumerates and probes source objects
//
//go:generate mockgen -destination=mocks/mock_sync.go -package=mocks -source=manager.go Source,Target,Manager
type Source interface {
	extract.Source
	// Probe reports whether the object behind entry still exists.
	Probe(ctx context.Context, entry model.IDEntry) (bool, error)
}

// Target receives documents and user permissions
type Target interface {
	writer.Target
	ListPermissions(ctx context.Context) ([]search.UserPermissions, error)
	AddPermissions(ctx context.Context, user string, permissions []string) error
	RemovePermissions(ctx context.Context, user string, permissions []string) error
}

// Manager runs sync modes
type Manager interface {
	// Run executes one mode to completion. The summary is always returned;
	// the error is set when the run failed or was cancelled.
	Run(ctx context.Context, mode Mode) (*status.RunSummary, *Error)
}

// Settings holds the run parameters derived from the configuration
type Settings struct {
	Types   []model.ObjectType
	Filters map[model.ObjectType]*transform.FieldFilter

	// Permissions attaches permission tags to documents and enables permission sync
	Permissions bool

	// StartTime and EndTime bound full sync. Zero StartTime reaches back as far as
	// the source allows; zero EndTime means the run start.
	StartTime time.Time
	EndTime   time.Time

	ExtractWorkers int
	QueueSize      int
	Writer         writer.Config

	// DryRun extracts and transforms without writing to the target or the state store
	DryRun bool
}

// SettingsFromConfig builds run settings from the configuration
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s := Settings{
		Types:          cfg.GetObjectTypes(),
		Filters:        map[model.ObjectType]*transform.FieldFilter{},
		Permissions:    cfg.PermissionsEnabled(),
		StartTime:      cfg.GetStartTime(),
		ExtractWorkers: cfg.GetExtractionWorkers(),
		QueueSize:      cfg.GetQueueSize(),
		Writer: writer.Config{
			Workers:        cfg.GetIndexingWorkers(),
			BatchSize:      cfg.GetBatchSize(),
			MaxBatchBytes:  cfg.GetMaxBatchBytes(),
			RetryCount:     cfg.GetRetryCount(),
			RetryInterval:  cfg.GetRetryBaseInterval(),
			SkipUnresolved: cfg.GetUnresolvedPermissionPolicy() == config.UnresolvedPolicySkip,
		},
	}
	if cfg.EndTime != "" {
		s.EndTime = cfg.GetEndTime(time.Time{})
	}

	var errs []error
	for _, t := range s.Types {
		include, exclude := cfg.GetFieldFilter(t)
		f, err := transform.NewFieldFilter(include, exclude)
		if err != nil {
			errs = append(errs, fmt.Errorf("objects.%s: %w", t, err))
			continue
		}
		s.Filters[t] = f
	}
	return s, errors.Join(errs...)
}

// Option configures the manager
type Option func(*defaultSyncManager)

// WithStatus records run summaries in p
func WithStatus(p status.Persistence) Option {
	return func(m *defaultSyncManager) {
		m.status = p
	}
}

// WithMetrics sets the sync metrics
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *defaultSyncManager) {
		m.metrics = metrics
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(tracer trace.Tracer) Option {
	return func(m *defaultSyncManager) {
		m.tracer = tracer
	}
}

// WithIdentity sets the identity table used for permission tags and permission sync.
// Without it every owned document is marked permission-unresolved.
func WithIdentity(mapper *identity.Mapper) Option {
	return func(m *defaultSyncManager) {
		m.mapper = mapper
	}
}

// defaultSyncManager is the default implementation of Manager
type defaultSyncManager struct {
	source      Source
	target      Target
	store       state.Store
	settings    Settings
	status      status.Persistence
	metrics     *telemetry.SyncMetrics
	tracer      trace.Tracer
	mapper      *identity.Mapper
	transformer *transform.Transformer
	now         func() time.Time
}

// NewManager creates a Manager. In dry-run mode target is replaced by a sink
// that accepts everything.
func NewManager(source Source, target Target, store state.Store, settings Settings, opts ...Option) Manager {
	m := &defaultSyncManager{
		source:   source,
		target:   target,
		store:    store,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if settings.DryRun {
		m.target = dryRunTarget{}
	}

	var resolver transform.Resolver
	if m.mapper != nil {
		resolver = m.mapper
	}
	m.transformer = transform.New(settings.Filters, resolver, settings.Permissions)
	return m
}

// Run executes one sync mode
func (m *defaultSyncManager) Run(ctx context.Context, mode Mode) (*status.RunSummary, *Error) {
	start := m.now().UTC()
	summary := &status.RunSummary{
		RunID:     uuid.NewString(),
		Mode:      string(mode),
		Outcome:   status.OutcomeRunning,
		DryRun:    m.settings.DryRun,
		Version:   versions.Version,
		StartedAt: start,
	}

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Run", trace.WithAttributes(
		otel.AttrSyncMode.String(string(mode)),
		otel.AttrRunID.String(summary.RunID),
		otel.AttrDryRun.Bool(m.settings.DryRun),
	))
	defer span.End()

	logger := slog.With("run_id", summary.RunID, "mode", mode)
	logger.InfoContext(ctx, "Starting sync run", "object_types", m.settings.Types, "dry_run", m.settings.DryRun)
	m.saveSummary(ctx, summary)

	var err *Error
	switch mode {
	case ModeIncremental, ModeFull:
		err = m.syncWindow(ctx, mode, start, summary)
	case ModeDeletion:
		err = m.syncDeletions(ctx, start, summary)
	case ModePermission:
		err = m.syncPermissions(ctx, summary)
	default:
		err = &Error{
			Err:     fmt.Errorf("unknown sync mode %q", mode),
			Message: fmt.Sprintf("Unknown sync mode %q", mode),
		}
	}
	if err != nil && ctx.Err() != nil {
		err = &Error{
			Err:        fmt.Errorf("%w: %w", ErrRunCancelled, err.Err),
			Message:    err.Message,
			ObjectType: err.ObjectType,
			Reason:     ReasonCancelled,
		}
	}

	m.finish(summary, err)
	m.recordTypeMetrics(ctx, mode, summary)
	if err != nil {
		otel.RecordError(span, err)
	}
	span.SetAttributes(otel.AttrOutcome.String(string(summary.Outcome)))

	// The summary must be written even when ctx was cancelled.
	m.saveSummary(context.WithoutCancel(ctx), summary)
	m.metrics.RecordRun(ctx, string(mode), string(summary.Outcome), summary.FinishedAt.Sub(start))

	attrs := []any{"outcome", summary.Outcome, "duration", summary.FinishedAt.Sub(start)}
	switch summary.Outcome {
	case status.OutcomeSucceeded:
		logger.InfoContext(ctx, "Sync run completed", attrs...)
	case status.OutcomePartialFailure:
		logger.WarnContext(ctx, "Sync run completed with partial failures; re-run full-sync or deletion-sync to recover",
			append(attrs, "message", summary.Message)...)
	default:
		logger.ErrorContext(ctx, "Sync run did not complete", append(attrs, "reason", summary.Reason, "error", summary.Message)...)
	}
	return summary, err
}

func (m *defaultSyncManager) finish(summary *status.RunSummary, err *Error) {
	finished := m.now().UTC()
	summary.FinishedAt = &finished

	switch {
	case err != nil && err.Reason == ReasonCancelled:
		summary.Outcome = status.OutcomeCancelled
		summary.Reason = err.Reason
		summary.Message = err.Message
	case err != nil:
		summary.Outcome = status.OutcomeFailed
		summary.Reason = err.Reason
		summary.Message = err.Message
	case summary.HasFailures():
		summary.Outcome = status.OutcomePartialFailure
		summary.Message = failureMessage(summary)
	default:
		summary.Outcome = status.OutcomeSucceeded
		summary.Message = "Sync completed successfully"
	}
}

// failureMessage lists the object types that lost pages or documents.
func failureMessage(summary *status.RunSummary) string {
	var parts []string
	for _, t := range model.AllObjectTypes() {
		ts, ok := summary.Types[string(t)]
		if !ok || !ts.HasFailures() {
			continue
		}
		part := fmt.Sprintf("%s: %d failed page(s), %d failed document(s)", t, ts.FailedPages, ts.Failed)
		if ts.Incomplete {
			part += ", enumeration incomplete"
		}
		parts = append(parts, part)
	}
	if p := summary.Permissions; p != nil && p.Failed > 0 {
		parts = append(parts, fmt.Sprintf("permissions: %d failed update(s)", p.Failed))
	}
	msg := "Sync completed with partial failures"
	for i, p := range parts {
		if i == 0 {
			msg += ": " + p
			continue
		}
		msg += "; " + p
	}
	return msg
}

func (m *defaultSyncManager) saveSummary(ctx context.Context, summary *status.RunSummary) {
	if m.status == nil {
		return
	}
	if err := m.status.SaveSummary(ctx, summary); err != nil {
		slog.WarnContext(ctx, "Failed to persist run summary", "run_id", summary.RunID, "error", err)
	}
}

func (m *defaultSyncManager) recordTypeMetrics(ctx context.Context, mode Mode, summary *status.RunSummary) {
	for name, ts := range summary.Types {
		m.metrics.RecordDocuments(ctx, string(mode), name, telemetry.ResultExtracted, ts.Extracted)
		m.metrics.RecordDocuments(ctx, string(mode), name, telemetry.ResultIndexed, ts.Indexed)
		m.metrics.RecordDocuments(ctx, string(mode), name, telemetry.ResultFailed, ts.Failed)
		m.metrics.RecordDocuments(ctx, string(mode), name, telemetry.ResultSkipped, ts.Skipped)
		m.metrics.RecordDocuments(ctx, string(mode), name, telemetry.ResultUnresolved, ts.Unresolved)
		m.metrics.RecordDocuments(ctx, string(mode), name, telemetry.ResultDeleted, ts.Deleted)
		m.metrics.RecordFailedPages(ctx, string(mode), name, ts.FailedPages)
	}
}

func stateError(err error, message string, t model.ObjectType) *Error {
	return &Error{
		Err:        err,
		Message:    message + ": " + err.Error(),
		ObjectType: t,
		Reason:     ReasonStateFailed,
	}
}

// dryRunTarget accepts every call without sending anything.
type dryRunTarget struct{}

func (dryRunTarget) IndexDocuments(_ context.Context, docs []map[string]any) ([]search.ItemResult, error) {
	out := make([]search.ItemResult, len(docs))
	for i, d := range docs {
		id, _ := d["id"].(string)
		out[i] = search.ItemResult{ID: id}
	}
	return out, nil
}

func (dryRunTarget) DeleteDocuments(_ context.Context, ids []string) ([]search.ItemResult, error) {
	out := make([]search.ItemResult, len(ids))
	for i, id := range ids {
		out[i] = search.ItemResult{ID: id}
	}
	return out, nil
}

func (dryRunTarget) ListPermissions(context.Context) ([]search.UserPermissions, error) {
	return nil, nil
}

func (dryRunTarget) AddPermissions(context.Context, string, []string) error {
	return nil
}

func (dryRunTarget) RemovePermissions(context.Context, string, []string) error {
	return nil
}
