package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/sync/extract/mocks"
	"github.com/stacklok/zoom-search-connector/internal/zoom"
)

var (
	since = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

type fakeSource struct {
	plan    *zoom.Plan
	records map[string][]model.SourceRecord
	stats   map[string]zoom.WalkStats
	errs    map[string]error
	delay   time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeSource) Plan(context.Context, []model.ObjectType, model.Window) (*zoom.Plan, error) {
	return f.plan, nil
}

func (f *fakeSource) Walk(ctx context.Context, unit model.Unit, emit func(model.SourceRecord) error) (zoom.WalkStats, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return zoom.WalkStats{}, ctx.Err()
		}
	}

	key := unit.String()
	stats := f.stats[key]
	stats.Pages++
	for _, r := range f.records[key] {
		if err := emit(r); err != nil {
			return stats, err
		}
	}
	return stats, f.errs[key]
}

func record(t model.ObjectType, id string, created time.Time) model.SourceRecord {
	return model.SourceRecord{ID: id, ObjectType: t, CreatedAt: created}
}

func collect(out <-chan model.SourceRecord) <-chan []string {
	done := make(chan []string, 1)
	go func() {
		var ids []string
		for r := range out {
			ids = append(ids, string(r.ObjectType)+"/"+r.ID)
		}
		done <- ids
	}()
	return done
}

func TestInterleave(t *testing.T) {
	t.Parallel()

	u := func(typ model.ObjectType, user string) model.Unit {
		return model.Unit{Type: typ, UserID: user}
	}
	units := []model.Unit{
		u(model.Meetings, "a"), u(model.Meetings, "b"), u(model.Meetings, "c"),
		u(model.Users, ""),
		u(model.Chats, "a"), u(model.Chats, "b"),
	}

	assert.Equal(t, []model.Unit{
		u(model.Meetings, "a"), u(model.Users, ""), u(model.Chats, "a"),
		u(model.Meetings, "b"), u(model.Chats, "b"),
		u(model.Meetings, "c"),
	}, Interleave(units))
	assert.Empty(t, Interleave(nil))
}

func TestPoolRun(t *testing.T) {
	t.Parallel()

	w := model.Window{Since: since, Until: until}
	users := model.Unit{Type: model.Users, Window: w}
	meetings := model.Unit{Type: model.Meetings, UserID: "u1", Window: w}
	source := &fakeSource{
		plan: &zoom.Plan{Units: []model.Unit{users, meetings}},
		records: map[string][]model.SourceRecord{
			users.String(): {
				record(model.Users, "u1", since.Add(time.Hour)),
				record(model.Users, "u2", since.Add(-time.Hour)),
			},
			meetings.String(): {
				record(model.Meetings, "m1", since.Add(2*time.Hour)),
				record(model.Meetings, "m2", until),
			},
		},
	}

	out := make(chan model.SourceRecord, 1)
	ids := collect(out)
	result, err := NewPool(source, 2).Run(context.Background(), []model.ObjectType{model.Users, model.Meetings}, w, out)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"users/u1", "meetings/m1"}, <-ids)
	assert.Equal(t, TypeStats{Units: 1, Pages: 1, Listed: 2, Emitted: 1}, *result.Stats[model.Users])
	assert.Equal(t, TypeStats{Units: 1, Pages: 1, Listed: 2, Emitted: 1}, *result.Stats[model.Meetings])
}

func TestPoolRunSkippedPages(t *testing.T) {
	t.Parallel()

	pageErr := errors.New("HTTP 500")
	unit := model.Unit{Type: model.Users}
	source := &fakeSource{
		plan: &zoom.Plan{
			Units:      []model.Unit{unit},
			Incomplete: map[model.ObjectType]error{model.Chats: pageErr},
		},
		records: map[string][]model.SourceRecord{unit.String(): {record(model.Users, "u1", since)}},
		stats:   map[string]zoom.WalkStats{unit.String(): {FailedPages: 1, LastErr: pageErr}},
	}

	out := make(chan model.SourceRecord, 10)
	ids := collect(out)
	result, err := NewPool(source, 1).Run(context.Background(), []model.ObjectType{model.Users, model.Chats}, model.Window{}, out)
	require.NoError(t, err)

	assert.Equal(t, []string{"users/u1"}, <-ids)
	assert.True(t, result.Stats[model.Users].Failed())
	assert.Equal(t, pageErr, result.Stats[model.Users].LastErr)
	assert.True(t, result.Stats[model.Chats].Failed())
	assert.Equal(t, 0, result.Stats[model.Chats].Units)
}

func TestPoolRunStopsOnFatalError(t *testing.T) {
	t.Parallel()

	fatal := errors.New("refresh token rejected")
	var units []model.Unit
	for _, user := range []string{"a", "b", "c", "d"} {
		units = append(units, model.Unit{Type: model.Meetings, UserID: user})
	}
	source := &fakeSource{
		plan: &zoom.Plan{Units: units},
		errs: map[string]error{units[0].String(): fatal},
	}

	out := make(chan model.SourceRecord)
	ids := collect(out)
	_, err := NewPool(source, 1).Run(context.Background(), []model.ObjectType{model.Meetings}, model.Window{}, out)
	require.ErrorIs(t, err, fatal)
	<-ids
}

func TestPoolRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var units []model.Unit
	for _, user := range []string{"a", "b", "c", "d", "e", "f"} {
		units = append(units, model.Unit{Type: model.Channels, UserID: user})
	}
	source := &fakeSource{plan: &zoom.Plan{Units: units}, delay: 20 * time.Millisecond}

	out := make(chan model.SourceRecord)
	ids := collect(out)
	result, err := NewPool(source, 2).Run(context.Background(), []model.ObjectType{model.Channels}, model.Window{}, out)
	require.NoError(t, err)
	<-ids

	assert.Equal(t, 6, result.Stats[model.Channels].Units)
	assert.LessOrEqual(t, source.maxActive.Load(), int32(2))
}

func TestPoolRunBackpressureAndCancel(t *testing.T) {
	t.Parallel()

	unit := model.Unit{Type: model.Users}
	var records []model.SourceRecord
	for i := range 10 {
		records = append(records, record(model.Users, string(rune('a'+i)), since))
	}
	source := &fakeSource{
		plan:    &zoom.Plan{Units: []model.Unit{unit}},
		records: map[string][]model.SourceRecord{unit.String(): records},
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.SourceRecord, 2)
	done := make(chan error, 1)
	go func() {
		_, err := NewPool(source, 1).Run(ctx, []model.ObjectType{model.Users}, model.Window{}, out)
		done <- err
	}()

	// Nobody reads: the producer blocks once the queue is full.
	require.Eventually(t, func() bool { return len(out) == cap(out) }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("producer must block on a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled run did not return")
	}
	for range out {
	}
}

func TestPoolRunPlanError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	source.EXPECT().
		Plan(gomock.Any(), []model.ObjectType{model.Users}, model.Window{}).
		Return(nil, errors.New("users unavailable"))

	out := make(chan model.SourceRecord)
	_, err := NewPool(source, 1).Run(context.Background(), []model.ObjectType{model.Users}, model.Window{}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users unavailable")

	_, open := <-out
	assert.False(t, open)
}

func TestPoolRunWithMockWalk(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	unit := model.Unit{Type: model.Roles}
	source.EXPECT().Plan(gomock.Any(), gomock.Any(), gomock.Any()).Return(&zoom.Plan{Units: []model.Unit{unit}}, nil)
	source.EXPECT().Walk(gomock.Any(), unit, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ model.Unit, emit func(model.SourceRecord) error) (zoom.WalkStats, error) {
			// Records without a timestamp are always in the window.
			return zoom.WalkStats{Pages: 1}, emit(model.SourceRecord{ID: "r1", ObjectType: model.Roles})
		})

	out := make(chan model.SourceRecord, 1)
	result, err := NewPool(source, 3).Run(context.Background(), []model.ObjectType{model.Roles},
		model.Window{Since: since, Until: until}, out)
	require.NoError(t, err)

	got := <-out
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 1, result.Stats[model.Roles].Emitted)
}
