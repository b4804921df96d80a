package activity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient("token", srv.Client()).WithBaseURL(srv.URL)
	require.NoError(t, err)
	return c
}

func TestPullRequests(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/yellow/bolt/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		if r.URL.Query().Get("page") == "2" {
			_, _ = io.WriteString(w, `[{"number":1,"title":"first","state":"closed","user":{"login":"bob"},"updated_at":"2024-04-01T00:00:00Z"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/yellow/bolt/pulls?page=2>; rel="next"`, r.Host))
		_, _ = io.WriteString(w, `[{"number":2,"title":"second","state":"open","user":{"login":"alice"},"updated_at":"2024-05-01T00:00:00Z"}]`)
	})
	mux.HandleFunc("/repos/yellow/bolt/issues/2/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"user":{"login":"carol"}},{"user":{"login":"alice"}},{"user":{"login":"bob"}},{"user":{"login":"carol"}}]`)
	})
	mux.HandleFunc("/repos/yellow/bolt/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	c := newTestClient(t, mux)

	items, err := c.PullRequests(context.Background(), "yellow", "bolt", Options{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"alice", "bob", "carol"}, items[0].Participants)
	assert.Equal(t, []string{"bob"}, items[1].Participants)
	assert.Equal(t, "#2 second (@alice) participants: alice, bob, carol\n#1 first (@bob) participants: bob", Format(items))

	items, err = c.PullRequests(context.Background(), "yellow", "bolt", Options{Since: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Number)

	items, err = c.PullRequests(context.Background(), "yellow", "bolt", Options{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestPullRequestsAPIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	}))
	_, err := c.PullRequests(context.Background(), "yellow", "missing", Options{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestParseRepo(t *testing.T) {
	t.Parallel()

	owner, name, err := ParseRepo(" yellow-seed/slack_bolt_sample ")
	require.NoError(t, err)
	assert.Equal(t, "yellow-seed", owner)
	assert.Equal(t, "slack_bolt_sample", name)
	for _, bad := range []string{"", "noslash", "a/", "/b", "a/b/c"} {
		_, _, err := ParseRepo(bad)
		assert.Error(t, err, bad)
	}
}
