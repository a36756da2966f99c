package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
)

const testPrefix = "/api/ws/v1/sources/src-1"

type call struct {
	method string
	path   string
	auth   string
	body   string
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]call) {
	t.Helper()

	var mu sync.Mutex
	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{method: r.Method, path: r.URL.RequestURI(), auth: r.Header.Get("Authorization"), body: string(body)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	hc := httpclient.NewDefaultClient(0,
		httpclient.WithRetryCount(0),
		httpclient.WithHeader("Authorization", "Bearer key"))
	return NewClient(hc, server.URL+"/", "src-1"), &calls
}

func TestIndexDocuments(t *testing.T) {
	t.Parallel()

	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"1","errors":[]},{"id":"2","errors":["title is too long"]}]}`))
	})

	results, err := client.IndexDocuments(context.Background(), []map[string]any{{"id": "1"}, {"id": "2"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Equal(t, []string{"title is too long"}, results[1].Errors)

	require.Len(t, *calls, 1)
	got := (*calls)[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, testPrefix+"/documents/bulk_create", got.path)
	assert.Equal(t, "Bearer key", got.auth)
	assert.JSONEq(t, `[{"id":"1"},{"id":"2"}]`, got.body)
}

func TestIndexDocumentsEmpty(t *testing.T) {
	t.Parallel()

	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	results, err := client.IndexDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, *calls)
}

func TestIndexDocumentsUnavailable(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.IndexDocuments(context.Background(), []map[string]any{{"id": "1"}})
	require.Error(t, err)
	assert.Equal(t, httpclient.KindTransient, httpclient.KindOf(err))
}

func TestDeleteDocuments(t *testing.T) {
	t.Parallel()

	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"1","success":true},{"id":"2","success":false}]}`))
	})

	results, err := client.DeleteDocuments(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())

	require.Len(t, *calls, 1)
	assert.Equal(t, testPrefix+"/documents/bulk_destroy", (*calls)[0].path)
	assert.JSONEq(t, `["1","2"]`, (*calls)[0].body)
}

func TestListPermissions(t *testing.T) {
	t.Parallel()

	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page[current]") {
		case "1":
			_, _ = w.Write([]byte(`{"meta":{"page":{"current":1,"total_pages":2}},
				"results":[{"user":"alice","permissions":["u1"]}]}`))
		default:
			_, _ = w.Write([]byte(`{"meta":{"page":{"current":2,"total_pages":2}},
				"results":[{"user":"bob","permissions":["u2","u3"]}]}`))
		}
	})

	perms, err := client.ListPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []UserPermissions{
		{User: "alice", Permissions: []string{"u1"}},
		{User: "bob", Permissions: []string{"u2", "u3"}},
	}, perms)
	assert.Len(t, *calls, 2)
}

func TestUserPermissions(t *testing.T) {
	t.Parallel()

	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":"alice","permissions":[]}`))
	})

	require.NoError(t, client.AddPermissions(context.Background(), "alice@corp", []string{"u1"}))
	require.NoError(t, client.RemovePermissions(context.Background(), "alice@corp", []string{"u1"}))

	require.Len(t, *calls, 2)
	assert.Equal(t, testPrefix+"/permissions/alice@corp/add", (*calls)[0].path)
	assert.Equal(t, testPrefix+"/permissions/alice@corp/remove", (*calls)[1].path)

	var body map[string][]string
	require.NoError(t, json.Unmarshal([]byte((*calls)[0].body), &body))
	assert.Equal(t, []string{"u1"}, body["permissions"])
}

func TestUserPermissionsRejected(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.AddPermissions(context.Background(), "nobody", []string{"u1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httpclient.StatusCodeOf(err))
}
