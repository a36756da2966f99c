// Package model contains the types shared by every stage of the sync pipeline.
package model

import (
	"fmt"
	"slices"
	"time"
)

// ObjectType identifies a kind of source object.
type ObjectType string

const (
	// Users are account members.
	Users ObjectType = "users"
	// Meetings are scheduled, upcoming and live meetings of a user.
	Meetings ObjectType = "meetings"
	// Recordings are completed cloud recording files of a user.
	Recordings ObjectType = "recordings"
	// Roles are account roles.
	Roles ObjectType = "roles"
	// Groups are account groups.
	Groups ObjectType = "groups"
	// PastMeetings are ended instances of a user's meetings.
	PastMeetings ObjectType = "past_meetings"
	// Channels are chat channels a user belongs to.
	Channels ObjectType = "channels"
	// Chats are chat messages sent by a user.
	Chats ObjectType = "chats"
	// Files are files shared in chats by a user.
	Files ObjectType = "files"
)

const (
	// MeetingRetention is how far back meetings, past meetings and recordings stay reachable at the source.
	MeetingRetention = 30 * 24 * time.Hour
	// ChatRetention is how far back chats and files stay reachable at the source.
	ChatRetention = 180 * 24 * time.Hour
)

var allObjectTypes = []ObjectType{
	Users, Roles, Groups, Meetings, PastMeetings, Recordings, Channels, Chats, Files,
}

// AllObjectTypes returns every object type in extraction order.
func AllObjectTypes() []ObjectType {
	return slices.Clone(allObjectTypes)
}

// ParseObjectType converts a configuration key into an ObjectType.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown object type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	return slices.Contains(allObjectTypes, t)
}

// String implements fmt.Stringer.
func (t ObjectType) String() string {
	return string(t)
}

// UserScoped reports whether objects of this type are listed per user
// rather than once for the whole account.
func (t ObjectType) UserScoped() bool {
	switch t {
	case Meetings, PastMeetings, Recordings, Channels, Chats, Files:
		return true
	default:
		return false
	}
}

// Retention returns the window after which the source archives objects of
// this type. Zero means objects never become archived.
func (t ObjectType) Retention() time.Duration {
	switch t {
	case Meetings, PastMeetings, Recordings:
		return MeetingRetention
	case Chats, Files:
		return ChatRetention
	default:
		return 0
	}
}

// ReadPermission is the privilege tag every document of this type carries
// when document permissions are enabled.
func (t ObjectType) ReadPermission() string {
	switch t {
	case Recordings:
		return "Recording:Read"
	case Chats, Files:
		return "ChatMessage:Read"
	case Channels:
		return "ChatChannel:Read"
	case Roles:
		return "Role:Read"
	case Groups:
		return "Group:Read"
	default:
		return "User:Read"
	}
}

// SortObjectTypes orders types the way AllObjectTypes does and drops duplicates.
func SortObjectTypes(types []ObjectType) []ObjectType {
	out := make([]ObjectType, 0, len(types))
	for _, t := range allObjectTypes {
		if slices.Contains(types, t) {
			out = append(out, t)
		}
	}
	return out
}
