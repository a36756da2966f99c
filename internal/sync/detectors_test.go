package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/zoom"
)

type proberFunc func(ctx context.Context, e model.IDEntry) (bool, error)

func (f proberFunc) Probe(ctx context.Context, e model.IDEntry) (bool, error) {
	return f(ctx, e)
}

func entries(t model.ObjectType, ids ...string) []model.IDEntry {
	out := make([]model.IDEntry, len(ids))
	for i, id := range ids {
		out[i] = model.IDEntry{ID: id, Type: t}
	}
	return out
}

func ids(list []model.IDEntry) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prior   []string
		current []string
		want    []string
	}{
		{name: "one removed", prior: []string{"1", "2", "3"}, current: []string{"2", "3", "4"}, want: []string{"1"}},
		{name: "nothing removed", prior: []string{"1"}, current: []string{"1", "2"}, want: []string{}},
		{name: "empty current", prior: []string{"1", "2"}, want: []string{"1", "2"}},
		{name: "empty prior", current: []string{"1"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prior := entries(model.Users, tt.prior...)
			got := Diff(prior, entries(model.Users, tt.current...))
			assert.Equal(t, tt.want, ids(got))
			assert.Len(t, prior, len(tt.prior))
		})
	}
}

func TestDeletionDetectorDetect(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	transient := &httpclient.Error{Kind: httpclient.KindTransient, StatusCode: 502}
	prober := proberFunc(func(_ context.Context, e model.IDEntry) (bool, error) {
		switch e.ID {
		case "gone":
			return false, nil
		case "alive":
			return true, nil
		case "flaky":
			return false, transient
		default:
			return false, zoom.ErrProbeUnsupported
		}
	})

	candidates := []model.IDEntry{
		{ID: "gone", Type: model.Users},
		{ID: "alive", Type: model.Meetings, CreatedAt: now.Add(-time.Hour)},
		{ID: "flaky", Type: model.Users},
		{ID: "recording", Type: model.Recordings, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "expired", Type: model.Chats, CreatedAt: now.AddDate(-1, 0, 0)},
	}

	tests := []struct {
		name         string
		complete     bool
		wantDelete   []string
		wantKeep     []string
		wantArchived []string
	}{
		{
			name:         "complete enumeration",
			complete:     true,
			wantDelete:   []string{"gone", "recording"},
			wantKeep:     []string{"alive", "flaky"},
			wantArchived: []string{"expired"},
		},
		{
			name:         "incomplete enumeration keeps unprobeable candidates",
			wantDelete:   []string{"gone"},
			wantKeep:     []string{"alive", "flaky", "recording"},
			wantArchived: []string{"expired"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDeletionDetector(prober, 3)
			d.now = func() time.Time { return now }

			got, err := d.Detect(context.Background(), candidates, tt.complete)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDelete, ids(got.Delete))
			assert.Equal(t, tt.wantKeep, ids(got.Keep))
			assert.Equal(t, tt.wantArchived, ids(got.Archived))
		})
	}
}

func TestDeletionDetectorAborts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "fatal credentials", err: &httpclient.Error{Kind: httpclient.KindAuthFatal, StatusCode: 401}},
		{name: "cancelled request", err: &httpclient.Error{Kind: httpclient.KindCanceled, Err: context.Canceled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDeletionDetector(proberFunc(func(context.Context, model.IDEntry) (bool, error) {
				return false, tt.err
			}), 2)
			_, err := d.Detect(context.Background(), entries(model.Users, "1", "2"), true)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestDeletionDetectorCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDeletionDetector(proberFunc(func(ctx context.Context, _ model.IDEntry) (bool, error) {
		return false, ctx.Err()
	}), 1)
	_, err := d.Detect(ctx, entries(model.Users, "1"), true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermissionDelta(t *testing.T) {
	t.Parallel()

	remove, add := permissionDelta([]string{"a", "b"}, []string{"b", "c", "c"})
	assert.Equal(t, []string{"a"}, remove)
	assert.Equal(t, []string{"c"}, add)

	remove, add = permissionDelta(nil, nil)
	assert.Empty(t, remove)
	assert.Empty(t, add)
}

func TestGroupWindows(t *testing.T) {
	t.Parallel()

	a := model.Window{Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := model.Window{Since: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	windows := map[model.ObjectType]model.Window{
		model.Users:    a,
		model.Meetings: b,
		model.Groups:   a,
	}
	groups := groupWindows([]model.ObjectType{model.Meetings, model.Users, model.Groups},
		func(t model.ObjectType) model.Window { return windows[t] })

	require.Len(t, groups, 2)
	total := 0
	for _, g := range groups {
		for _, ot := range g.types {
			assert.Equal(t, windows[ot], g.window)
		}
		total += len(g.types)
	}
	assert.Equal(t, 3, total)
}
