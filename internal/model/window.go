package model

import "time"

// Window is the half-open interval [Since, Until) a sync run covers.
// A zero bound leaves that side open.
type Window struct {
	Since time.Time
	Until time.Time
}

// Clamp moves Since forward so the window reaches back at most retention from now.
// A zero retention leaves the window unchanged.
func (w Window) Clamp(now time.Time, retention time.Duration) Window {
	if retention == 0 {
		return w
	}
	earliest := now.Add(-retention)
	if w.Since.IsZero() || w.Since.Before(earliest) {
		w.Since = earliest
	}
	return w
}

// Chunks splits a bounded window into consecutive windows of at most size.
// Unbounded windows and a non-positive size yield the window itself.
func (w Window) Chunks(size time.Duration) []Window {
	if size <= 0 || w.Since.IsZero() || w.Until.IsZero() || !w.Since.Before(w.Until) {
		return []Window{w}
	}
	var out []Window
	for start := w.Since; start.Before(w.Until); start = start.Add(size) {
		end := start.Add(size)
		if end.After(w.Until) {
			end = w.Until
		}
		out = append(out, Window{Since: start, Until: end})
	}
	return out
}

// Unit is an independently fetchable slice of one object type's enumeration.
type Unit struct {
	Type ObjectType
	// UserID is set for user-scoped types.
	UserID string
	Window Window
}

// String identifies the unit in logs.
func (u Unit) String() string {
	s := string(u.Type)
	if u.UserID != "" {
		s += "/" + u.UserID
	}
	if !u.Window.Since.IsZero() {
		s += "@" + u.Window.Since.Format(time.DateOnly)
	}
	return s
}
