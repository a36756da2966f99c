package transform

import (
	"golang.org/x/text/unicode/norm"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

// Mapping copies one source field into one target field.
type Mapping struct {
	Target string
	Source string
}

// DefaultSchema is the target field layout of each object type.
// The id mapping is listed first and always survives field filtering.
var DefaultSchema = map[model.ObjectType][]Mapping{
	model.Users:        {{"id", "id"}, {"title", "first_name"}, {"created_at", "created_at"}},
	model.Channels:     {{"id", "id"}, {"title", "name"}},
	model.Roles:        {{"id", "id"}, {"title", "name"}, {"description", "description"}},
	model.Groups:       {{"id", "id"}, {"title", "name"}},
	model.Meetings:     {{"id", "id"}, {"title", "topic"}, {"created_at", "created_at"}},
	model.PastMeetings: {{"id", "uuid"}, {"title", "topic"}, {"created_at", "start_time"}},
	model.Recordings: {
		{"id", "id"}, {"title", "topic"}, {"created_at", "recording_start"}, {"size", "total_size"}, {"url", "play_url"},
	},
	model.Chats: {{"id", "id"}, {"description", "message"}, {"created_at", "date_time"}},
	model.Files: {
		{"id", "file_id"}, {"title", "file_name"}, {"size", "file_size"}, {"created_at", "date_time"}, {"url", "download_url"},
	},
}

// PermissionsField carries document-level permissions in the target.
const PermissionsField = "_allow_permissions"

// Render converts a document into the payload sent to the target.
// Synthesized body and url replace schema fields of the same name.
func Render(doc model.Document) map[string]any {
	out := map[string]any{
		"id":   doc.ID,
		"type": string(doc.ObjectType),
	}
	for _, m := range DefaultSchema[doc.ObjectType] {
		if m.Target == "id" {
			continue
		}
		if v, ok := doc.Fields[m.Source]; ok && v != nil {
			out[m.Target] = normalize(v)
		}
	}
	if doc.ParentID != "" {
		out["parent_id"] = doc.ParentID
	}
	if doc.Body != "" {
		out["body"] = norm.NFC.String(doc.Body)
	}
	if doc.URL != "" {
		out["url"] = doc.URL
	}
	if doc.Permissions != nil {
		out[PermissionsField] = doc.Permissions
	}
	return out
}

func normalize(v any) any {
	if s, ok := v.(string); ok {
		return norm.NFC.String(s)
	}
	return v
}
