package sync_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/identity"
	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/otel"
	"github.com/stacklok/zoom-search-connector/internal/search"
	"github.com/stacklok/zoom-search-connector/internal/status"
	"github.com/stacklok/zoom-search-connector/internal/sync"
	"github.com/stacklok/zoom-search-connector/internal/sync/state"
	statemocks "github.com/stacklok/zoom-search-connector/internal/sync/state/mocks"
	"github.com/stacklok/zoom-search-connector/internal/sync/writer"
	"github.com/stacklok/zoom-search-connector/internal/transform"
	"github.com/stacklok/zoom-search-connector/internal/zoom"
)

var (
	startTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	created   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeSource struct {
	mu          stdsync.Mutex
	records     map[model.ObjectType][]model.SourceRecord
	failedPages map[model.ObjectType]int
	exists      map[string]bool
	probeErrs   map[string]error
	windows     map[model.ObjectType][]model.Window
	probed      []string
	onWalk      func(ctx context.Context, unit model.Unit) error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records:     map[model.ObjectType][]model.SourceRecord{},
		failedPages: map[model.ObjectType]int{},
		exists:      map[string]bool{},
		probeErrs:   map[string]error{},
		windows:     map[model.ObjectType][]model.Window{},
	}
}

func (f *fakeSource) add(t model.ObjectType, ids ...string) {
	for _, id := range ids {
		f.records[t] = append(f.records[t], model.SourceRecord{
			ID:         id,
			ObjectType: t,
			ParentID:   parentOf(t),
			CreatedAt:  created,
			Fields:     map[string]any{"id": id},
		})
	}
}

func parentOf(t model.ObjectType) string {
	if t.UserScoped() {
		return "u1"
	}
	return ""
}

func (f *fakeSource) Plan(_ context.Context, types []model.ObjectType, w model.Window) (*zoom.Plan, error) {
	plan := &zoom.Plan{Incomplete: map[model.ObjectType]error{}}
	for _, t := range types {
		plan.Units = append(plan.Units, model.Unit{Type: t, Window: w})
	}
	return plan, nil
}

func (f *fakeSource) Walk(ctx context.Context, unit model.Unit, emit func(model.SourceRecord) error) (zoom.WalkStats, error) {
	f.mu.Lock()
	f.windows[unit.Type] = append(f.windows[unit.Type], unit.Window)
	records := slices.Clone(f.records[unit.Type])
	failed := f.failedPages[unit.Type]
	f.mu.Unlock()

	if f.onWalk != nil {
		if err := f.onWalk(ctx, unit); err != nil {
			return zoom.WalkStats{}, err
		}
	}
	stats := zoom.WalkStats{Pages: 1, FailedPages: failed}
	if failed > 0 {
		stats.LastErr = &httpclient.Error{Kind: httpclient.KindTransient, StatusCode: 503}
	}
	for _, r := range records {
		if err := emit(r); err != nil {
			return stats, err
		}
		stats.Records++
	}
	return stats, nil
}

func (f *fakeSource) Probe(_ context.Context, e model.IDEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, e.ID)
	if err := f.probeErrs[e.ID]; err != nil {
		return false, err
	}
	if e.Type == model.Recordings || e.Type == model.Files {
		return false, zoom.ErrProbeUnsupported
	}
	return f.exists[e.ID], nil
}

func (f *fakeSource) lastWindow(t model.ObjectType) model.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws := f.windows[t]
	if len(ws) == 0 {
		return model.Window{}
	}
	return ws[len(ws)-1]
}

type fakeTarget struct {
	mu         stdsync.Mutex
	docs       map[string]map[string]any
	indexed    []string
	reject     map[string]bool
	indexErr   error
	perms      map[string][]string
	failUsers  map[string]bool
	permCalls  int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		docs:      map[string]map[string]any{},
		reject:    map[string]bool{},
		perms:     map[string][]string{},
		failUsers: map[string]bool{},
	}
}

func (f *fakeTarget) IndexDocuments(_ context.Context, docs []map[string]any) ([]search.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	out := make([]search.ItemResult, len(docs))
	for i, d := range docs {
		id := d["id"].(string)
		out[i] = search.ItemResult{ID: id}
		if f.reject[id] {
			out[i].Errors = []string{"invalid document"}
			continue
		}
		f.docs[id] = d
		f.indexed = append(f.indexed, id)
	}
	return out, nil
}

func (f *fakeTarget) DeleteDocuments(_ context.Context, ids []string) ([]search.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]search.ItemResult, len(ids))
	for i, id := range ids {
		delete(f.docs, id)
		out[i] = search.ItemResult{ID: id}
	}
	return out, nil
}

func (f *fakeTarget) ListPermissions(context.Context) ([]search.UserPermissions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []search.UserPermissions
	for _, user := range slices.Sorted(maps.Keys(f.perms)) {
		out = append(out, search.UserPermissions{User: user, Permissions: slices.Clone(f.perms[user])})
	}
	return out, nil
}

func (f *fakeTarget) AddPermissions(_ context.Context, user string, perms []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permCalls++
	if f.failUsers[user] {
		return errors.New("update rejected")
	}
	f.perms[user] = append(f.perms[user], perms...)
	return nil
}

func (f *fakeTarget) RemovePermissions(_ context.Context, user string, perms []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permCalls++
	if f.failUsers[user] {
		return errors.New("update rejected")
	}
	f.perms[user] = slices.DeleteFunc(f.perms[user], func(p string) bool { return slices.Contains(perms, p) })
	return nil
}

func (f *fakeTarget) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.docs))
}

func testSettings(types ...model.ObjectType) sync.Settings {
	return sync.Settings{
		Types:          types,
		StartTime:      startTime,
		ExtractWorkers: 2,
		QueueSize:      4,
		Writer: writer.Config{
			Workers:       2,
			BatchSize:     2,
			RetryCount:    1,
			RetryInterval: time.Millisecond,
		},
	}
}

func newFileStore(t *testing.T) *state.FileStore {
	t.Helper()
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func snapshotIDs(t *testing.T, store state.Store, ot model.ObjectType) []string {
	t.Helper()
	entries, err := store.LoadSnapshot(context.Background(), ot)
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)
	return ids
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, m := range sync.Modes() {
		got, err := sync.ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := sync.ParseMode("nightly")
	assert.Error(t, err)
}

func TestIncrementalSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newFakeSource()
	source.add(model.Users, "u1", "u2")
	source.add(model.Meetings, "m1")
	target := newFakeTarget()
	store := newFileStore(t)
	persistence := status.NewFilePersistence(t.TempDir())

	m := sync.NewManager(source, target, store, testSettings(model.Users, model.Meetings), sync.WithStatus(persistence))

	summary, err := m.Run(ctx, sync.ModeIncremental)
	require.Nil(t, err)
	assert.Equal(t, status.OutcomeSucceeded, summary.Outcome)
	assert.Equal(t, status.ExitSuccess, summary.Outcome.ExitCode())
	assert.Equal(t, []string{"m1", "u1", "u2"}, target.ids())
	assert.Equal(t, 2, summary.Types["users"].Indexed)
	assert.Equal(t, startTime, source.lastWindow(model.Users).Since)

	// Every attempted type advances to the run start.
	checkpoints, cerr := store.GetCheckpoints(ctx)
	require.NoError(t, cerr)
	require.Len(t, checkpoints, 2)
	for _, cp := range checkpoints {
		assert.True(t, cp.Equal(summary.StartedAt), "checkpoint %s, run start %s", cp, summary.StartedAt)
	}
	assert.Equal(t, []string{"u1", "u2"}, snapshotIDs(t, store, model.Users))

	saved, lerr := persistence.LoadSummary(ctx, "incremental")
	require.NoError(t, lerr)
	require.NotNil(t, saved)
	assert.Equal(t, summary.RunID, saved.RunID)
	assert.Equal(t, status.OutcomeSucceeded, saved.Outcome)

	// The second run starts where the first stopped and leaves the target as it was.
	second, err := m.Run(ctx, sync.ModeIncremental)
	require.Nil(t, err)
	assert.Equal(t, status.OutcomeSucceeded, second.Outcome)
	assert.True(t, source.lastWindow(model.Users).Since.Equal(summary.StartedAt))
	assert.Equal(t, 0, second.Types["users"].Extracted)
	assert.Equal(t, []string{"m1", "u1", "u2"}, target.ids())
}

func TestRunSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	source := newFakeSource()
	source.add(model.Users, "u1", "u2")
	source.add(model.Meetings, "m1")
	m := sync.NewManager(source, newFakeTarget(), newFileStore(t), testSettings(model.Users, model.Meetings),
		sync.WithTracer(tp.Tracer("sync")))

	_, err := m.Run(context.Background(), sync.ModeIncremental)
	require.Nil(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	pipeline, run := spans[0], spans[1]
	assert.Equal(t, "sync.Pipeline", pipeline.Name)
	assert.Equal(t, "sync.Run", run.Name)
	assert.Equal(t, run.SpanContext.SpanID(), pipeline.Parent.SpanID())
	assert.Contains(t, pipeline.Attributes, otel.AttrResultCount.Int(3))
	assert.Contains(t, run.Attributes, otel.AttrOutcome.String(string(status.OutcomeSucceeded)))
}

func TestIncrementalSyncPartialFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newFakeSource()
	source.add(model.Users, "u1", "u2")
	source.add(model.Meetings, "m1")
	source.failedPages[model.Meetings] = 1
	target := newFakeTarget()
	target.reject["u2"] = true
	store := newFileStore(t)

	m := sync.NewManager(source, target, store, testSettings(model.Users, model.Meetings))
	summary, err := m.Run(ctx, sync.ModeIncremental)
	require.Nil(t, err)

	assert.Equal(t, status.OutcomePartialFailure, summary.Outcome)
	assert.Equal(t, status.ExitPartialFailure, summary.Outcome.ExitCode())
	assert.Equal(t, 1, summary.Types["meetings"].FailedPages)
	assert.Equal(t, 1, summary.Types["users"].Failed)
	assert.Contains(t, summary.Message, "meetings")
	assert.Equal(t, []string{"m1", "u1"}, target.ids())

	// Lost pages and documents do not hold the checkpoint back.
	checkpoints, cerr := store.GetCheckpoints(ctx)
	require.NoError(t, cerr)
	assert.True(t, checkpoints[model.Users].Equal(summary.StartedAt))
	assert.True(t, checkpoints[model.Meetings].Equal(summary.StartedAt))
	assert.Equal(t, []string{"u1"}, snapshotIDs(t, store, model.Users))
}

func TestSyncCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := newFakeSource()
	source.add(model.Users, "u1")
	source.onWalk = func(ctx context.Context, _ model.Unit) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	store := newFileStore(t)
	prior := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCheckpoint(context.Background(), model.Users, prior))

	m := sync.NewManager(source, newFakeTarget(), store, testSettings(model.Users))
	summary, err := m.Run(ctx, sync.ModeIncremental)
	require.NotNil(t, err)

	assert.Equal(t, sync.ReasonCancelled, err.Reason)
	assert.ErrorIs(t, err, sync.ErrRunCancelled)
	assert.Equal(t, status.OutcomeCancelled, summary.Outcome)
	assert.Equal(t, status.ExitFatal, summary.Outcome.ExitCode())

	checkpoints, cerr := store.GetCheckpoints(context.Background())
	require.NoError(t, cerr)
	assert.True(t, checkpoints[model.Users].Equal(prior))
}

func TestSyncCancelledKeepsEveryCheckpoint(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := newFakeSource()
	source.add(model.Users, "u1")
	source.add(model.Meetings, "m1")
	// Users drain in their own window before meetings are walked.
	source.onWalk = func(ctx context.Context, unit model.Unit) error {
		if unit.Type != model.Meetings {
			return nil
		}
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	store := newFileStore(t)
	prior := map[model.ObjectType]time.Time{
		model.Users:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		model.Meetings: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	for ot, at := range prior {
		require.NoError(t, store.SaveCheckpoint(context.Background(), ot, at))
	}

	m := sync.NewManager(source, newFakeTarget(), store, testSettings(model.Users, model.Meetings))
	summary, err := m.Run(ctx, sync.ModeIncremental)
	require.NotNil(t, err)
	assert.Equal(t, sync.ReasonCancelled, err.Reason)
	assert.Equal(t, status.OutcomeCancelled, summary.Outcome)
	assert.True(t, source.lastWindow(model.Users).Since.Equal(prior[model.Users]))

	checkpoints, cerr := store.GetCheckpoints(context.Background())
	require.NoError(t, cerr)
	for ot, at := range prior {
		assert.True(t, checkpoints[ot].Equal(at), "%s checkpoint %s, want %s", ot, checkpoints[ot], at)
	}
}

func TestFullSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		endTime time.Time
	}{
		{
			name:    "past end time",
			endTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "future end time",
			endTime: time.Now().UTC().AddDate(1, 0, 0).Truncate(time.Second),
		},
		{
			name: "no end time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			source := newFakeSource()
			source.add(model.Users, "u1")
			store := newFileStore(t)
			require.NoError(t, store.SaveCheckpoint(ctx, model.Users, created.Add(time.Hour)))

			settings := testSettings(model.Users)
			settings.EndTime = tt.endTime
			m := sync.NewManager(source, newFakeTarget(), store, settings)

			summary, err := m.Run(ctx, sync.ModeFull)
			require.Nil(t, err)
			assert.Equal(t, status.OutcomeSucceeded, summary.Outcome)

			// The stored checkpoint is ignored as the lower bound.
			w := source.lastWindow(model.Users)
			assert.Equal(t, startTime, w.Since)
			if tt.endTime.IsZero() {
				assert.True(t, w.Until.Equal(summary.StartedAt))
			} else {
				assert.True(t, w.Until.Equal(tt.endTime))
			}
			assert.Equal(t, 1, summary.Types["users"].Indexed)

			// The checkpoint records when the run started, whatever the window's end.
			checkpoints, cerr := store.GetCheckpoints(ctx)
			require.NoError(t, cerr)
			assert.True(t, checkpoints[model.Users].Equal(summary.StartedAt),
				"checkpoint %s, run start %s", checkpoints[model.Users], summary.StartedAt)

			next, err := m.Run(ctx, sync.ModeIncremental)
			require.Nil(t, err)
			assert.Equal(t, status.OutcomeSucceeded, next.Outcome)
			nw := source.lastWindow(model.Users)
			assert.True(t, nw.Since.Equal(summary.StartedAt))
			assert.False(t, nw.Until.Before(nw.Since), "window %s..%s", nw.Since, nw.Until)
		})
	}
}

func TestFullSyncRecoversMissedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newFakeSource()
	source.add(model.Users, "u1", "u2")
	target := newFakeTarget()
	target.reject["u2"] = true
	store := newFileStore(t)

	m := sync.NewManager(source, target, store, testSettings(model.Users))
	partial, err := m.Run(ctx, sync.ModeIncremental)
	require.Nil(t, err)
	assert.Equal(t, status.OutcomePartialFailure, partial.Outcome)
	assert.Equal(t, []string{"u1"}, target.ids())

	target.mu.Lock()
	delete(target.reject, "u2")
	target.mu.Unlock()

	full, err := m.Run(ctx, sync.ModeFull)
	require.Nil(t, err)
	assert.Equal(t, status.OutcomeSucceeded, full.Outcome)
	assert.Equal(t, startTime, source.lastWindow(model.Users).Since)
	assert.Equal(t, []string{"u1", "u2"}, target.ids())
	assert.Equal(t, []string{"u1", "u2"}, snapshotIDs(t, store, model.Users))

	checkpoints, cerr := store.GetCheckpoints(ctx)
	require.NoError(t, cerr)
	assert.True(t, checkpoints[model.Users].Equal(full.StartedAt))
}

func TestSyncTargetUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newFakeSource()
	source.add(model.Users, "u1")
	target := newFakeTarget()
	target.indexErr = &httpclient.Error{Kind: httpclient.KindTransient, StatusCode: 503, Message: "unavailable"}
	store := newFileStore(t)

	m := sync.NewManager(source, target, store, testSettings(model.Users))
	summary, err := m.Run(ctx, sync.ModeIncremental)
	require.NotNil(t, err)
	assert.Equal(t, sync.ReasonTargetUnavailable, err.Reason)
	assert.ErrorIs(t, err, writer.ErrTargetUnavailable)
	assert.Equal(t, status.OutcomeFailed, summary.Outcome)

	checkpoints, cerr := store.GetCheckpoints(ctx)
	require.NoError(t, cerr)
	assert.Empty(t, checkpoints)
}

func TestSyncStateFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := statemocks.NewMockStore(ctrl)
	store.EXPECT().GetCheckpoints(gomock.Any()).Return(nil, errors.New("disk full"))

	m := sync.NewManager(newFakeSource(), newFakeTarget(), store, testSettings(model.Users))
	summary, err := m.Run(context.Background(), sync.ModeIncremental)
	require.NotNil(t, err)
	assert.Equal(t, sync.ReasonStateFailed, err.Reason)
	assert.Equal(t, status.OutcomeFailed, summary.Outcome)
	assert.Equal(t, status.ExitFatal, summary.Outcome.ExitCode())
}

func TestDryRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newFakeSource()
	source.add(model.Users, "u1", "u2")
	target := newFakeTarget()
	store := newFileStore(t)

	settings := testSettings(model.Users)
	settings.DryRun = true
	m := sync.NewManager(source, target, store, settings)

	summary, err := m.Run(ctx, sync.ModeIncremental)
	require.Nil(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Types["users"].Indexed)
	assert.Empty(t, target.ids())

	checkpoints, cerr := store.GetCheckpoints(ctx)
	require.NoError(t, cerr)
	assert.Empty(t, checkpoints)
	assert.Empty(t, snapshotIDs(t, store, model.Users))
}

func TestUnresolvedPermissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		skip        bool
		wantIDs     []string
		wantSkipped int
	}{
		{name: "index with read tag only", wantIDs: []string{"u1", "u2"}},
		{name: "skip by policy", skip: true, wantIDs: []string{"u1"}, wantSkipped: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := newFakeSource()
			source.add(model.Users, "u1", "u2")
			target := newFakeTarget()
			settings := testSettings(model.Users)
			settings.Permissions = true
			settings.Writer.SkipUnresolved = tt.skip
			mapper := identity.NewMapper(map[string][]string{"u1": {"alice@example.com"}})

			m := sync.NewManager(source, target, newFileStore(t), settings, sync.WithIdentity(mapper))
			summary, err := m.Run(context.Background(), sync.ModeIncremental)
			require.Nil(t, err)

			users := summary.Types["users"]
			assert.Equal(t, 1, users.Unresolved)
			assert.Equal(t, tt.wantSkipped, users.Skipped)
			assert.Equal(t, tt.wantIDs, target.ids())
			assert.Equal(t,
				[]string{model.Users.ReadPermission(), "alice@example.com"},
				target.docs["u1"][transform.PermissionsField])

			// Incremental sync with permissions enabled also runs a permission pass.
			require.NotNil(t, summary.Permissions)
			assert.Equal(t, []string{"u1"}, target.perms["alice@example.com"])
		})
	}
}

func TestPermissionSync(t *testing.T) {
	t.Parallel()

	mapper := identity.NewMapper(map[string][]string{
		"u1": {"alice"},
		"u2": {"alice", "bob"},
	})

	tests := []struct {
		name        string
		permissions bool
		mapper      *identity.Mapper
		current     map[string][]string
		failUsers   []string
		wantReason  string
		wantOutcome status.Outcome
		wantPerms   map[string][]string
		wantSummary status.PermissionSummary
	}{
		{
			name:        "disabled",
			mapper:      mapper,
			wantReason:  sync.ReasonPermissionDisabled,
			wantOutcome: status.OutcomeFailed,
		},
		{
			name:        "empty mapping",
			permissions: true,
			mapper:      identity.NewMapper(nil),
			wantReason:  sync.ReasonMappingMissing,
			wantOutcome: status.OutcomeFailed,
		},
		{
			name:        "replaces permission lists",
			permissions: true,
			mapper:      mapper,
			current:     map[string][]string{"alice": {"stale"}, "bob": {"u2"}, "carol": {"u9"}},
			wantOutcome: status.OutcomeSucceeded,
			wantPerms:   map[string][]string{"alice": {"u1", "u2"}, "bob": {"u2"}, "carol": {}},
			wantSummary: status.PermissionSummary{Users: 2, Added: 2, Removed: 2},
		},
		{
			name:        "failed user does not stop the pass",
			permissions: true,
			mapper:      mapper,
			failUsers:   []string{"alice"},
			wantOutcome: status.OutcomePartialFailure,
			wantPerms:   map[string][]string{"bob": {"u2"}},
			wantSummary: status.PermissionSummary{Users: 2, Added: 1, Failed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			target := newFakeTarget()
			maps.Copy(target.perms, tt.current)
			for _, u := range tt.failUsers {
				target.failUsers[u] = true
			}
			settings := testSettings(model.Users)
			settings.Permissions = tt.permissions

			m := sync.NewManager(newFakeSource(), target, newFileStore(t), settings, sync.WithIdentity(tt.mapper))
			summary, err := m.Run(context.Background(), sync.ModePermission)
			assert.Equal(t, tt.wantOutcome, summary.Outcome)

			if tt.wantReason != "" {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantReason, err.Reason)
				assert.Zero(t, target.permCalls)
				return
			}
			require.Nil(t, err)
			require.NotNil(t, summary.Permissions)
			assert.Equal(t, tt.wantSummary, *summary.Permissions)
			for user, want := range tt.wantPerms {
				assert.ElementsMatch(t, want, target.perms[user], user)
			}
		})
	}
}

func TestPermissionSyncIdempotent(t *testing.T) {
	t.Parallel()

	target := newFakeTarget()
	settings := testSettings(model.Users)
	settings.Permissions = true
	mapper := identity.NewMapper(map[string][]string{"u1": {"alice"}})
	m := sync.NewManager(newFakeSource(), target, newFileStore(t), settings, sync.WithIdentity(mapper))

	_, err := m.Run(context.Background(), sync.ModePermission)
	require.Nil(t, err)
	calls := target.permCalls

	summary, err := m.Run(context.Background(), sync.ModePermission)
	require.Nil(t, err)
	assert.Equal(t, calls, target.permCalls)
	assert.Equal(t, 0, summary.Permissions.Users)
}

func TestDeletionSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	source := newFakeSource()
	source.add(model.Users, "2", "3", "4")
	source.exists["5"] = true

	target := newFakeTarget()
	for _, id := range []string{"1", "2", "3", "5", "old-meeting"} {
		target.docs[id] = map[string]any{"id": id}
	}

	store := newFileStore(t)
	require.NoError(t, store.AddToSnapshot(ctx, []model.IDEntry{
		{ID: "1", Type: model.Users, CreatedAt: created},
		{ID: "2", Type: model.Users, CreatedAt: created},
		{ID: "3", Type: model.Users, CreatedAt: created},
		{ID: "5", Type: model.Users, CreatedAt: created},
		{ID: "old-meeting", Type: model.Meetings, ParentID: "u1", CreatedAt: now.AddDate(-1, 0, 0)},
	}))

	m := sync.NewManager(source, target, store, testSettings(model.Users, model.Meetings))
	summary, err := m.Run(ctx, sync.ModeDeletion)
	require.Nil(t, err)
	assert.Equal(t, status.OutcomeSucceeded, summary.Outcome)

	// "1" is gone, "5" still exists though it was not enumerated, and the
	// meeting is past retention so it is left alone.
	assert.Equal(t, []string{"2", "3", "4", "5", "old-meeting"}, target.ids())
	assert.Equal(t, 1, summary.Types["users"].Deleted)
	assert.Equal(t, 0, summary.Types["meetings"].Deleted)

	// Only the record missing from the snapshot was upserted.
	assert.Equal(t, []string{"4"}, target.indexed)
	assert.NotContains(t, source.probed, "2")

	assert.Equal(t, []string{"2", "3", "4", "5"}, snapshotIDs(t, store, model.Users))
	assert.Empty(t, snapshotIDs(t, store, model.Meetings))
}

func TestDeletionSyncIncompleteEnumeration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	recent := time.Now().UTC().Add(-24 * time.Hour)
	source := newFakeSource()
	source.failedPages[model.Recordings] = 1

	target := newFakeTarget()
	target.docs["r1"] = map[string]any{"id": "r1"}
	store := newFileStore(t)
	require.NoError(t, store.AddToSnapshot(ctx, []model.IDEntry{
		{ID: "r1", Type: model.Recordings, ParentID: "u1", CreatedAt: recent},
	}))

	m := sync.NewManager(source, target, store, testSettings(model.Recordings))
	summary, err := m.Run(ctx, sync.ModeDeletion)
	require.Nil(t, err)

	// A recording cannot be probed, and a lost page may have held it.
	assert.Equal(t, status.OutcomePartialFailure, summary.Outcome)
	assert.Equal(t, []string{"r1"}, target.ids())
	assert.Equal(t, []string{"r1"}, snapshotIDs(t, store, model.Recordings))

	// Once the enumeration is complete the unprobeable candidate is deleted.
	source.failedPages[model.Recordings] = 0
	summary, err = m.Run(ctx, sync.ModeDeletion)
	require.Nil(t, err)
	assert.Equal(t, status.OutcomeSucceeded, summary.Outcome)
	assert.Empty(t, target.ids())
	assert.Empty(t, snapshotIDs(t, store, model.Recordings))
}

func TestDeletionSyncFatalProbe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newFakeSource()
	source.probeErrs["1"] = &httpclient.Error{Kind: httpclient.KindAuthFatal, StatusCode: 401}
	store := newFileStore(t)
	require.NoError(t, store.AddToSnapshot(ctx, []model.IDEntry{{ID: "1", Type: model.Users, CreatedAt: created}}))

	m := sync.NewManager(source, newFakeTarget(), store, testSettings(model.Users))
	summary, err := m.Run(ctx, sync.ModeDeletion)
	require.NotNil(t, err)
	assert.Equal(t, sync.ReasonCredentialsInvalid, err.Reason)
	assert.Equal(t, status.OutcomeFailed, summary.Outcome)
	assert.Equal(t, []string{"1"}, snapshotIDs(t, store, model.Users))
}
