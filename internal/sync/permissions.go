package sync

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/stacklok/zoom-search-connector/internal/identity"
	"github.com/stacklok/zoom-search-connector/internal/status"
)

// syncPermissions makes every target user's permission list equal to the source
// ids mapped to that user. Users listed by the target but absent from the
// mapping lose all their permissions. A failed update is counted and the pass
// moves on to the next user.
func (m *defaultSyncManager) syncPermissions(ctx context.Context, summary *status.RunSummary) *Error {
	if !m.settings.Permissions {
		return &Error{
			Err:     ErrPermissionSyncDisabled,
			Message: "Permission sync requires document permissions to be enabled",
			Reason:  ReasonPermissionDisabled,
		}
	}
	if m.mapper.Len() == 0 {
		return &Error{
			Err:     identity.ErrEmptyMapping,
			Message: "Permission sync requires a non-empty user mapping",
			Reason:  ReasonMappingMissing,
		}
	}
	if summary.Permissions == nil {
		summary.Permissions = &status.PermissionSummary{}
	}
	result := summary.Permissions

	listed, err := m.target.ListPermissions(ctx)
	if err != nil {
		e := newError(err, "Failed to list target permissions", "")
		if e.Reason == ReasonExtractionFailed {
			e.Reason = ReasonTargetUnavailable
		}
		return e
	}
	current := make(map[string][]string, len(listed))
	for _, up := range listed {
		current[up.User] = up.Permissions
	}
	desired := m.mapper.ByTarget()

	users := slices.Sorted(maps.Keys(current))
	for user := range desired {
		if _, ok := current[user]; !ok {
			users = append(users, user)
		}
	}
	slices.Sort(users)

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return newError(err, "Permission sync interrupted", "")
		}
		remove, add := permissionDelta(current[user], desired[user])
		if len(remove) == 0 && len(add) == 0 {
			continue
		}
		result.Users++

		if len(remove) > 0 {
			if err := m.target.RemovePermissions(ctx, user, remove); err != nil {
				result.Failed++
				slog.WarnContext(ctx, "Failed to remove permissions", "user", user, "error", err)
				continue
			}
			result.Removed += len(remove)
		}
		if len(add) > 0 {
			if err := m.target.AddPermissions(ctx, user, add); err != nil {
				result.Failed++
				slog.WarnContext(ctx, "Failed to add permissions", "user", user, "error", err)
				continue
			}
			result.Added += len(add)
		}
	}

	slog.InfoContext(ctx, "Permission sync finished",
		"users", result.Users,
		"added", result.Added,
		"removed", result.Removed,
		"failed", result.Failed)
	return nil
}

// permissionDelta returns what must be removed from and added to have to reach want.
func permissionDelta(have, want []string) (remove, add []string) {
	for _, p := range have {
		if !slices.Contains(want, p) {
			remove = append(remove, p)
		}
	}
	for _, p := range want {
		if !slices.Contains(have, p) && !slices.Contains(add, p) {
			add = append(add, p)
		}
	}
	return remove, add
}
