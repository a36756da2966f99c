// Package transform shapes source records into indexable documents.
package transform

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

// Resolver maps a source user id to target user ids.
type Resolver interface {
	Resolve(sourceID string) ([]string, bool)
}

// Transformer applies field filters and attaches permission tags.
// It holds no mutable state and is safe for concurrent use.
type Transformer struct {
	filters     map[model.ObjectType]*FieldFilter
	resolver    Resolver
	permissions bool
}

// New creates a Transformer. Types without a filter keep every field.
// With permissions disabled the resolver is never consulted.
func New(filters map[model.ObjectType]*FieldFilter, resolver Resolver, permissions bool) *Transformer {
	return &Transformer{
		filters:     filters,
		resolver:    resolver,
		permissions: permissions,
	}
}

// Transform builds the document of r.
func (t *Transformer) Transform(r model.SourceRecord) model.Document {
	doc := model.Document{
		ID:         r.ID,
		ObjectType: r.ObjectType,
		ParentID:   r.ParentID,
		CreatedAt:  r.CreatedAt,
		Fields:     t.filters[r.ObjectType].Apply(r.Fields),
		Body:       body(r),
		URL:        link(r),
	}
	if !t.permissions {
		return doc
	}

	doc.Permissions = []string{r.ObjectType.ReadPermission()}
	owner := Owner(r)
	if owner == "" {
		return doc
	}
	var targets []string
	ok := false
	if t.resolver != nil {
		targets, ok = t.resolver.Resolve(owner)
	}
	if !ok {
		doc.PermissionUnresolved = true
		return doc
	}
	doc.Permissions = append(doc.Permissions, targets...)
	return doc
}

// Owner returns the source user whose identity grants access to r, or "" for
// account-level objects.
func Owner(r model.SourceRecord) string {
	switch r.ObjectType {
	case model.Users:
		return r.ID
	case model.Roles, model.Groups:
		return ""
	case model.PastMeetings:
		return str(r.Fields["host_id"])
	default:
		return r.ParentID
	}
}

var meetingTypes = map[string]string{
	"1": "An instant meeting",
	"2": "A scheduled meeting",
	"3": "A recurring meeting with no fixed time",
	"8": "A recurring meeting with fixed time",
}

func body(r model.SourceRecord) string {
	f := r.Fields
	switch r.ObjectType {
	case model.Users:
		return fmt.Sprintf("First Name : %s\nLast Name : %s\nStatus : %s\nRole Id : %s\nEmail : %s",
			str(f["first_name"]), str(f["last_name"]), str(f["status"]), str(f["role_id"]), str(f["email"]))
	case model.Meetings:
		return fmt.Sprintf("Meeting Host : %s\nMeeting Type : %s", str(f["host_id"]), meetingTypes[str(f["type"])])
	case model.PastMeetings:
		return fmt.Sprintf("Meeting Duration:%s\nMeeting Type:%s\nMeeting Participants : %s",
			str(f["duration"]), meetingTypes[str(f["type"])], participants(f))
	case model.Recordings:
		return fmt.Sprintf("File MetaData\n File Type : %s\n File Size : %s\n Recording Type : %s",
			str(f["file_type"]), str(f["file_size"]), str(f["recording_type"]))
	case model.Chats:
		return "Message : " + str(f["message"])
	case model.Files:
		return fmt.Sprintf("File Name : %s\nFile Size : %s", str(f["file_name"]), str(f["file_size"]))
	case model.Channels:
		return fmt.Sprintf("Channel Name : %s\nChannel Settings : %s", str(f["name"]), str(f["channel_settings"]))
	case model.Roles:
		return "Total Members : " + str(f["total_members"])
	case model.Groups:
		return "Total Members : " + str(f["total_members"])
	default:
		return ""
	}
}

func participants(f map[string]any) string {
	list, _ := f["participants"].([]any)
	names := make([]string, 0, len(list))
	for _, p := range list {
		if m, ok := p.(map[string]any); ok {
			names = append(names, str(m["name"]))
		}
	}
	if len(names) == 0 {
		// Hosts alone in their meeting are not reported as participants.
		return str(f["user_name"])
	}
	return strings.Join(names, ", ")
}

func link(r model.SourceRecord) string {
	id := url.PathEscape(r.ID)
	switch r.ObjectType {
	case model.Users:
		return "https://zoom.us/user/" + id + "/profile"
	case model.Meetings:
		return "https://zoom.us/user/" + url.PathEscape(r.ParentID) + "/meeting/" + id
	case model.PastMeetings:
		return "https://zoom.us/user/" + url.PathEscape(str(r.Fields["host_id"])) + "/meeting/" + url.PathEscape(r.ParentID)
	case model.Recordings:
		return "https://zoom.us/recording/management/detail?meeting_id=" + url.QueryEscape(str(r.Fields["uuid"]))
	case model.Chats, model.Files:
		return "https://zoom.us/account/archivemsg/search#/list"
	case model.Channels:
		return "https://zoom.us/account/imchannel/old#/member/" + id
	case model.Roles:
		return "https://zoom.us/role#/detail/" + id + "/settings"
	case model.Groups:
		return "https://zoom.us/account/group#/detail/" + id + "/detail"
	default:
		return ""
	}
}

// str formats scalar field values; nested values are rendered as JSON.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case fmt.Stringer:
		return s.String()
	case map[string]any, []any:
		data, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(s)
	}
}
