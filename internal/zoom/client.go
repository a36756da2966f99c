// Package zoom implements the source API boundary: listing endpoints, pagination,
// work-unit planning and existence probes.
package zoom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/model"
)

const (
	// chatAccessPrivilege grants a role member access to chat messages and files
	chatAccessPrivilege = "ChatMessage:Read"

	// chunkSize bounds the date range of one recordings or chat listing request
	chunkSize = 30 * 24 * time.Hour
)

// ErrProbeUnsupported is returned by Probe for types without a single-object endpoint.
var ErrProbeUnsupported = errors.New("object type cannot be probed")

// Plan is the set of units that together enumerate the requested types.
type Plan struct {
	Units []model.Unit
	// Incomplete maps a type to the reason its enumeration will miss records.
	Incomplete map[model.ObjectType]error
}

// Client reads objects from the source API.
type Client struct {
	http    httpclient.Client
	baseURL string
	now     func() time.Time
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(client httpclient.Client, baseURL string) *Client {
	return &Client{
		http:    client,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Plan splits the enumeration of types over w into units. User-scoped types get one
// unit per user (and per date chunk where the API bounds the range); chats and files
// are planned only for users allowed to read chat messages.
func (c *Client) Plan(ctx context.Context, types []model.ObjectType, w model.Window) (*Plan, error) {
	plan := &Plan{Incomplete: map[model.ObjectType]error{}}
	now := c.now().UTC()
	if w.Until.IsZero() {
		w.Until = now
	}

	var users []string
	if slices.ContainsFunc(types, model.ObjectType.UserScoped) {
		ids, stats, err := c.listUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		users = ids
		if stats.FailedPages > 0 {
			for _, t := range types {
				if t.UserScoped() {
					plan.Incomplete[t] = fmt.Errorf("user listing skipped %d page(s): %w", stats.FailedPages, stats.LastErr)
				}
			}
		}
	}

	var chatUsers []string
	if slices.Contains(types, model.Chats) || slices.Contains(types, model.Files) {
		allowed, stats, err := c.chatAccessUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve chat access: %w", err)
		}
		if stats.FailedPages > 0 {
			for _, t := range []model.ObjectType{model.Chats, model.Files} {
				if slices.Contains(types, t) {
					plan.Incomplete[t] = fmt.Errorf("role listing skipped %d page(s): %w", stats.FailedPages, stats.LastErr)
				}
			}
		}
		for _, id := range users {
			if _, ok := allowed[id]; ok {
				chatUsers = append(chatUsers, id)
			}
		}
	}

	for _, t := range types {
		switch t {
		case model.Users, model.Roles, model.Groups:
			plan.Units = append(plan.Units, model.Unit{Type: t, Window: w})
		case model.Meetings, model.PastMeetings, model.Channels:
			for _, id := range users {
				plan.Units = append(plan.Units, model.Unit{Type: t, UserID: id, Window: w})
			}
		case model.Recordings:
			rw := w
			if rw.Since.IsZero() {
				rw.Since = now.Add(-t.Retention())
			}
			plan.Units = append(plan.Units, userChunks(t, users, rw)...)
		case model.Chats, model.Files:
			plan.Units = append(plan.Units, userChunks(t, chatUsers, w.Clamp(now, t.Retention()))...)
		}
	}
	return plan, nil
}

func userChunks(t model.ObjectType, users []string, w model.Window) []model.Unit {
	var units []model.Unit
	for _, id := range users {
		for _, chunk := range w.Chunks(chunkSize) {
			units = append(units, model.Unit{Type: t, UserID: id, Window: chunk})
		}
	}
	return units
}

// Walk fetches every page of unit in API order and emits its records.
// Page failures are contained in the returned stats; an error means the walk
// cannot continue (cancellation, credential failure, or emit failure).
func (c *Client) Walk(ctx context.Context, unit model.Unit, emit func(model.SourceRecord) error) (WalkStats, error) {
	var emitted int
	send := func(r model.SourceRecord) error {
		emitted++
		return emit(r)
	}

	stats, err := c.walk(ctx, unit, send)
	stats.Records = emitted
	return stats, err
}

func (c *Client) walk(ctx context.Context, unit model.Unit, emit func(model.SourceRecord) error) (WalkStats, error) {
	user := url.PathEscape(unit.UserID)

	switch unit.Type {
	case model.Users:
		return c.walkNumberedPages(ctx, "/users?page_size=300", "users", func(it item) error {
			return emit(newRecord(model.Users, it, "", "created_at", ""))
		})

	case model.Roles:
		return c.walkTokenPages(ctx, "/roles", "roles", func(it item) error {
			return emit(newRecord(model.Roles, it, "", "", ""))
		})

	case model.Groups:
		return c.walkTokenPages(ctx, "/groups?page_size=300", "groups", func(it item) error {
			return emit(newRecord(model.Groups, it, "", "", ""))
		})

	case model.Meetings:
		return c.walkTokenPages(ctx, "/users/"+user+"/meetings?page_size=300", "meetings", func(it item) error {
			return emit(newRecord(model.Meetings, it, unit.UserID, "created_at", ""))
		})

	case model.PastMeetings:
		return c.walkPastMeetings(ctx, unit, emit)

	case model.Recordings:
		path := fmt.Sprintf("/users/%s/recordings?page_size=300&from=%s&to=%s",
			user, formatTime(unit.Window.Since), formatTime(unit.Window.Until))
		return c.walkTokenPages(ctx, path, "meetings", func(it item) error {
			for _, r := range recordingRecords(it, unit.UserID) {
				if err := emit(r); err != nil {
					return err
				}
			}
			return nil
		})

	case model.Channels:
		return c.walkTokenPages(ctx, "/chat/users/"+user+"/channels?page_size=50", "channels", func(it item) error {
			return emit(newRecord(model.Channels, it, unit.UserID, "", ""))
		})

	case model.Chats, model.Files:
		searchType := "message"
		if unit.Type == model.Files {
			searchType = "file"
		}
		path := fmt.Sprintf("/chat/users/%s/messages?page_size=50&search_key=%%20&search_type=%s&from=%s&to=%s",
			user, searchType, formatTime(unit.Window.Since), formatTime(unit.Window.Until))
		return c.walkTokenPages(ctx, path, "messages", func(it item) error {
			r := chatRecord(unit.Type, it, unit.UserID)
			if r.ID == "" {
				return nil
			}
			return emit(r)
		})

	default:
		return WalkStats{}, fmt.Errorf("unsupported object type %q", unit.Type)
	}
}

// walkPastMeetings lists a user's previous meetings and reads the ended instance of each.
func (c *Client) walkPastMeetings(ctx context.Context, unit model.Unit, emit func(model.SourceRecord) error) (WalkStats, error) {
	var detailStats WalkStats
	path := "/users/" + url.PathEscape(unit.UserID) + "/meetings?page_size=300&type=previous_meetings"

	stats, err := c.walkTokenPages(ctx, path, "meetings", func(it item) error {
		meetingID := it.raw.Get("id").String()
		if meetingID == "" {
			return nil
		}
		// Instances that started a day before the window cannot have ended inside it.
		if start, ok := parseTime(it.raw.Get("start_time").String()); ok && !unit.Window.Since.IsZero() &&
			start.Before(unit.Window.Since.Add(-24*time.Hour)) {
			return nil
		}

		body, err := c.get(ctx, c.baseURL+"/past_meetings/"+url.PathEscape(meetingID))
		if err != nil {
			if stopWalk(ctx, err) {
				return err
			}
			if httpclient.StatusCodeOf(err) == http.StatusNotFound || httpclient.StatusCodeOf(err) == http.StatusBadRequest {
				// Never started.
				return nil
			}
			detailStats.FailedPages++
			detailStats.LastErr = err
			slog.WarnContext(ctx, "Skipping past meeting", "meeting_id", meetingID, "error", err)
			return nil
		}
		detailStats.Pages++

		fields, err := decodeFields(string(body))
		if err != nil {
			detailStats.FailedPages++
			detailStats.LastErr = err
			return nil
		}
		participants, err := c.participants(ctx, meetingID)
		if err != nil {
			if stopWalk(ctx, err) {
				return err
			}
			slog.WarnContext(ctx, "Indexing past meeting without participants", "meeting_id", meetingID, "error", err)
		}
		fields["participants"] = participants

		return emit(pastMeetingRecord(fields, meetingID))
	})
	stats.add(detailStats)
	return stats, err
}

func (c *Client) participants(ctx context.Context, meetingID string) ([]any, error) {
	keep := []string{"id", "name", "join_time", "leave_time", "duration"}
	var out []any
	_, err := c.walkTokenPages(ctx, "/report/meetings/"+url.PathEscape(meetingID)+"/participants?page_size=300",
		"participants", func(it item) error {
			p := make(map[string]any, len(keep))
			for _, k := range keep {
				if v, ok := it.fields[k]; ok {
					p[k] = v
				}
			}
			out = append(out, p)
			return nil
		})
	return out, err
}

// listUserIDs enumerates the ids of every account user.
func (c *Client) listUserIDs(ctx context.Context) ([]string, WalkStats, error) {
	var ids []string
	stats, err := c.walkNumberedPages(ctx, "/users?page_size=300", "users", func(it item) error {
		if id := it.raw.Get("id").String(); id != "" {
			ids = append(ids, id)
		}
		return nil
	})
	return ids, stats, err
}

// chatAccessUsers returns the users holding the chat read privilege through a role.
func (c *Client) chatAccessUsers(ctx context.Context) (map[string]struct{}, WalkStats, error) {
	var roleIDs []string
	stats, err := c.walkTokenPages(ctx, "/roles", "roles", func(it item) error {
		if id := it.raw.Get("id").String(); id != "" {
			roleIDs = append(roleIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	allowed := map[string]struct{}{}
	for _, roleID := range roleIDs {
		body, err := c.get(ctx, c.baseURL+"/roles/"+url.PathEscape(roleID))
		if err != nil {
			if stopWalk(ctx, err) {
				return nil, stats, err
			}
			stats.FailedPages++
			stats.LastErr = err
			continue
		}
		stats.Pages++
		if !hasPrivilege(body, chatAccessPrivilege) {
			continue
		}

		members, err := c.walkTokenPages(ctx, "/roles/"+url.PathEscape(roleID)+"/members?page_size=300", "members",
			func(it item) error {
				if id := it.raw.Get("id").String(); id != "" {
					allowed[id] = struct{}{}
				}
				return nil
			})
		stats.add(members)
		if err != nil {
			return nil, stats, err
		}
	}
	return allowed, stats, nil
}

// Probe reports whether the object behind entry still exists at the source.
func (c *Client) Probe(ctx context.Context, entry model.IDEntry) (bool, error) {
	id := url.PathEscape(entry.ID)
	var path string
	switch entry.Type {
	case model.Users:
		path = "/users/" + id
	case model.Meetings:
		path = "/meetings/" + id
	case model.PastMeetings:
		// Instance uuids may contain slashes and must be encoded twice.
		path = "/past_meetings/" + url.PathEscape(id)
	case model.Channels:
		path = "/chat/channels/" + id
	case model.Chats:
		path = "/chat/users/" + url.PathEscape(entry.ParentID) + "/messages/" + id
	case model.Roles:
		path = "/roles/" + id
	case model.Groups:
		path = "/groups/" + id
	default:
		return false, ErrProbeUnsupported
	}

	_, err := c.get(ctx, c.baseURL+path)
	if err == nil {
		return true, nil
	}
	switch httpclient.StatusCodeOf(err) {
	case http.StatusNotFound, http.StatusBadRequest:
		return false, nil
	default:
		return false, err
	}
}
