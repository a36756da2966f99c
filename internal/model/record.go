package model

import (
	"maps"
	"slices"
	"time"
)

// SourceRecord is a raw object read from the source API.
type SourceRecord struct {
	ID         string
	ObjectType ObjectType
	// ParentID is the user a user-scoped record was listed for, or the meeting of a past meeting.
	ParentID   string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	Fields     map[string]any
}

// Timestamp returns the instant used to place the record in a sync window.
func (r SourceRecord) Timestamp() time.Time {
	if r.ModifiedAt != nil && !r.ModifiedAt.IsZero() {
		return *r.ModifiedAt
	}
	return r.CreatedAt
}

// InWindow reports whether the record falls in [since, until).
// A zero since or until leaves that side of the window open. Records
// without any timestamp are always in the window.
func (r SourceRecord) InWindow(since, until time.Time) bool {
	ts := r.Timestamp()
	if ts.IsZero() {
		return true
	}
	if !since.IsZero() && ts.Before(since) {
		return false
	}
	if !until.IsZero() && !ts.Before(until) {
		return false
	}
	return true
}

// Document is the indexable unit produced by the transformer.
type Document struct {
	ID         string
	ObjectType ObjectType
	ParentID   string
	CreatedAt  time.Time
	// Fields holds the source fields that survived the field filter.
	Fields map[string]any
	Body   string
	URL    string
	// Permissions is ordered: the type's read privilege first, then resolved target user ids.
	Permissions []string
	// PermissionUnresolved is set when the owning user has no identity mapping.
	PermissionUnresolved bool
}

// Clone returns a copy of d that shares no maps or slices with it.
func (d Document) Clone() Document {
	out := d
	out.Fields = maps.Clone(d.Fields)
	out.Permissions = slices.Clone(d.Permissions)
	return out
}

// Entry returns the snapshot entry describing d.
func (d Document) Entry() IDEntry {
	return IDEntry{
		ID:        d.ID,
		Type:      d.ObjectType,
		ParentID:  d.ParentID,
		CreatedAt: d.CreatedAt,
	}
}

// IDEntry is one element of a persisted id-set snapshot.
type IDEntry struct {
	ID        string     `json:"id" bson:"document_id"`
	Type      ObjectType `json:"type" bson:"object_type"`
	ParentID  string     `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

// Archived reports whether the source no longer serves the entry at now.
func (e IDEntry) Archived(now time.Time) bool {
	retention := e.Type.Retention()
	if retention == 0 || e.CreatedAt.IsZero() {
		return false
	}
	return e.CreatedAt.Before(now.Add(-retention))
}
