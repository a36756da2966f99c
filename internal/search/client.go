// Package search implements the target API boundary: bulk document upserts and
// deletes, and per-user document permissions on one content source.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
)

// ItemResult is the outcome of one document of a bulk call.
type ItemResult struct {
	ID string
	// Errors is empty when the item succeeded.
	Errors []string
}

// OK reports whether the item was accepted.
func (r ItemResult) OK() bool {
	return len(r.Errors) == 0
}

// UserPermissions lists the permissions granted to one target user.
type UserPermissions struct {
	User        string
	Permissions []string
}

// Client talks to one content source of the target system.
type Client struct {
	http    httpclient.Client
	baseURL string
}

// NewClient creates a client for the content source sourceID on host.
// Authentication is carried by the httpclient (see httpclient.WithHeader).
func NewClient(client httpclient.Client, host, sourceID string) *Client {
	return &Client{
		http:    client,
		baseURL: strings.TrimRight(host, "/") + "/api/ws/v1/sources/" + url.PathEscape(sourceID),
	}
}

// IndexDocuments upserts docs and returns one result per document.
func (c *Client) IndexDocuments(ctx context.Context, docs []map[string]any) ([]ItemResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	body, err := c.post(ctx, "/documents/bulk_create", docs)
	if err != nil {
		return nil, fmt.Errorf("failed to index documents: %w", err)
	}

	results := gjson.GetBytes(body, "results").Array()
	out := make([]ItemResult, 0, len(results))
	for _, r := range results {
		item := ItemResult{ID: r.Get("id").String()}
		for _, e := range r.Get("errors").Array() {
			item.Errors = append(item.Errors, e.String())
		}
		out = append(out, item)
	}
	return out, nil
}

// DeleteDocuments removes the documents with the given ids.
func (c *Client) DeleteDocuments(ctx context.Context, ids []string) ([]ItemResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := c.post(ctx, "/documents/bulk_destroy", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete documents: %w", err)
	}

	results := gjson.GetBytes(body, "results").Array()
	out := make([]ItemResult, 0, len(results))
	for _, r := range results {
		item := ItemResult{ID: r.Get("id").String()}
		if !r.Get("success").Bool() {
			item.Errors = []string{"not deleted"}
		}
		out = append(out, item)
	}
	return out, nil
}

// ListPermissions returns the permissions of every user of the content source.
func (c *Client) ListPermissions(ctx context.Context) ([]UserPermissions, error) {
	var out []UserPermissions
	for page, total := 1, 1; page <= total; page++ {
		resp, err := c.http.Do(ctx, httpclient.NewRequest(http.MethodGet,
			c.baseURL+"/permissions?page%5Bcurrent%5D="+strconv.Itoa(page), nil))
		if err != nil {
			return nil, fmt.Errorf("failed to list permissions: %w", err)
		}
		if n := int(gjson.GetBytes(resp.Body, "meta.page.total_pages").Int()); n > total {
			total = n
		}
		for _, r := range gjson.GetBytes(resp.Body, "results").Array() {
			up := UserPermissions{User: r.Get("user").String()}
			for _, p := range r.Get("permissions").Array() {
				up.Permissions = append(up.Permissions, p.String())
			}
			out = append(out, up)
		}
	}
	return out, nil
}

// AddPermissions grants permissions to user.
func (c *Client) AddPermissions(ctx context.Context, user string, permissions []string) error {
	if _, err := c.post(ctx, "/permissions/"+url.PathEscape(user)+"/add",
		map[string][]string{"permissions": permissions}); err != nil {
		return fmt.Errorf("failed to add permissions for %s: %w", user, err)
	}
	return nil
}

// RemovePermissions revokes permissions from user.
func (c *Client) RemovePermissions(ctx context.Context, user string, permissions []string) error {
	if _, err := c.post(ctx, "/permissions/"+url.PathEscape(user)+"/remove",
		map[string][]string{"permissions": permissions}); err != nil {
		return fmt.Errorf("failed to remove permissions for %s: %w", user, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := c.http.Do(ctx, httpclient.NewRequest(http.MethodPost, c.baseURL+path, data))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
