package zoom

import (
	"maps"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

func newRecord(t model.ObjectType, it item, parentID, createdKey, modifiedKey string) model.SourceRecord {
	r := model.SourceRecord{
		ID:         it.raw.Get("id").String(),
		ObjectType: t,
		ParentID:   parentID,
		Fields:     it.fields,
	}
	if createdKey != "" {
		r.CreatedAt, _ = parseTime(it.raw.Get(createdKey).String())
	}
	if modifiedKey != "" {
		if ts, ok := parseTime(it.raw.Get(modifiedKey).String()); ok {
			r.ModifiedAt = &ts
		}
	}
	return r
}

// recordingRecords flattens a recorded meeting into one record per completed file.
// Meeting-level fields are shared by every file record; file fields win on conflict.
func recordingRecords(it item, userID string) []model.SourceRecord {
	meeting := map[string]any{}
	for _, key := range []string{"uuid", "topic", "share_url", "total_size", "host_id", "start_time"} {
		if v, ok := it.fields[key]; ok {
			meeting[key] = v
		}
	}
	if id, ok := it.fields["id"]; ok {
		meeting["meeting_id"] = id
	}

	files, _ := it.fields["recording_files"].([]any)
	out := make([]model.SourceRecord, 0, len(files))
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok || file["status"] != "completed" {
			continue
		}
		fields := maps.Clone(meeting)
		maps.Copy(fields, file)
		r := model.SourceRecord{
			ID:         stringOf(file["id"]),
			ObjectType: model.Recordings,
			ParentID:   userID,
			Fields:     fields,
		}
		if r.ID == "" {
			continue
		}
		r.CreatedAt, _ = parseTime(stringOf(file["recording_start"]))
		if end, ok := parseTime(stringOf(file["recording_end"])); ok {
			r.ModifiedAt = &end
		}
		out = append(out, r)
	}
	return out
}

func chatRecord(t model.ObjectType, it item, userID string) model.SourceRecord {
	idKey := "id"
	if t == model.Files {
		idKey = "file_id"
	}
	r := model.SourceRecord{
		ID:         it.raw.Get(idKey).String(),
		ObjectType: t,
		ParentID:   userID,
		Fields:     it.fields,
	}
	r.CreatedAt, _ = parseTime(it.raw.Get("date_time").String())
	return r
}

// pastMeetingRecord is windowed by its end time.
func pastMeetingRecord(fields map[string]any, meetingID string) model.SourceRecord {
	r := model.SourceRecord{
		ID:         stringOf(fields["uuid"]),
		ObjectType: model.PastMeetings,
		ParentID:   meetingID,
		Fields:     fields,
	}
	r.CreatedAt, _ = parseTime(stringOf(fields["start_time"]))
	if end, ok := parseTime(stringOf(fields["end_time"])); ok {
		r.ModifiedAt = &end
	}
	return r
}

func hasPrivilege(roleBody []byte, privilege string) bool {
	for _, p := range gjson.GetBytes(roleBody, "privileges").Array() {
		if p.String() == privilege {
			return true
		}
	}
	return false
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case interface{ String() string }:
		return s.String()
	default:
		return ""
	}
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
