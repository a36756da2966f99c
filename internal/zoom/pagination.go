package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
)

// WalkStats summarizes the pages fetched for one unit.
type WalkStats struct {
	Pages       int
	FailedPages int
	// Records counts emitted records.
	Records int
	// LastErr is the most recent page failure.
	LastErr error
}

func (s *WalkStats) add(o WalkStats) {
	s.Pages += o.Pages
	s.FailedPages += o.FailedPages
	s.Records += o.Records
	if o.LastErr != nil {
		s.LastErr = o.LastErr
	}
}

// item is one decoded element of a list response.
type item struct {
	raw    gjson.Result
	fields map[string]any
}

// stopWalk reports whether a page error must end the whole run rather than the page.
func stopWalk(ctx context.Context, err error) bool {
	return ctx.Err() != nil || httpclient.IsFatal(err) || httpclient.KindOf(err) == httpclient.KindCanceled
}

// walkTokenPages follows next_page_token. A failed page ends the listing because
// the cursor of the following page is unknown.
func (c *Client) walkTokenPages(ctx context.Context, path, key string, each func(item) error) (WalkStats, error) {
	var stats WalkStats
	token := ""
	for {
		pageURL := withQuery(c.baseURL+path, "next_page_token", token)
		body, err := c.get(ctx, pageURL)
		if err != nil {
			if stopWalk(ctx, err) {
				return stats, err
			}
			stats.FailedPages++
			stats.LastErr = err
			slog.WarnContext(ctx, "Skipping page after retries were exhausted",
				"path", path, "page", stats.Pages+stats.FailedPages, "error", err)
			return stats, nil
		}
		stats.Pages++

		if err := eachItem(body, key, each); err != nil {
			return stats, err
		}

		token = gjson.GetBytes(body, "next_page_token").String()
		if token == "" {
			return stats, nil
		}
	}
}

// walkNumberedPages follows page_number up to page_count. A failed page is skipped
// and the walk continues with the next one.
func (c *Client) walkNumberedPages(ctx context.Context, path, key string, each func(item) error) (WalkStats, error) {
	var stats WalkStats
	pageCount := 1
	for page := 1; page <= pageCount; page++ {
		pageURL := withQuery(c.baseURL+path, "page_number", strconv.Itoa(page))
		body, err := c.get(ctx, pageURL)
		if err != nil {
			if stopWalk(ctx, err) {
				return stats, err
			}
			stats.FailedPages++
			stats.LastErr = err
			slog.WarnContext(ctx, "Skipping page after retries were exhausted",
				"path", path, "page", page, "error", err)
			continue
		}
		stats.Pages++
		if count := int(gjson.GetBytes(body, "page_count").Int()); count > pageCount {
			pageCount = count
		}

		if err := eachItem(body, key, each); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.http.Do(ctx, httpclient.NewRequest(http.MethodGet, rawURL, nil))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func eachItem(body []byte, key string, each func(item) error) error {
	var iterErr error
	gjson.GetBytes(body, key).ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		fields, err := decodeFields(value.Raw)
		if err != nil {
			slog.Warn("Skipping undecodable item", "key", key, "error", err)
			return true
		}
		if err := each(item{raw: value, fields: fields}); err != nil {
			iterErr = err
			return false
		}
		return true
	})
	return iterErr
}

// decodeFields keeps numbers as json.Number so large ids survive.
func decodeFields(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return fields, nil
}

func withQuery(rawURL, key, value string) string {
	if value == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}
