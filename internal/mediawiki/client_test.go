package mediawiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWiki answers api.php queries by the value of the list or prop param.
type fakeWiki struct {
	mu       sync.Mutex
	requests []url.Values
	handlers map[string]func(q url.Values) string
}

func newFakeWiki(t *testing.T, handlers map[string]func(q url.Values) string) (*fakeWiki, *Client) {
	t.Helper()
	fw := &fakeWiki{handlers: handlers}
	srv := httptest.NewServer(fw)
	t.Cleanup(srv.Close)
	return fw, New(srv.URL+"/w/api.php", srv.Client(), WithCategoryAliases("Luokka"))
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.requests = append(f.requests, q)
	f.mu.Unlock()
	key := q.Get("list")
	if key == "" {
		key = q.Get("prop")
	}
	handler, ok := f.handlers[key]
	if !ok {
		http.Error(w, "unexpected query", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(handler(q)))
}

func (f *fakeWiki) last() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestOldReviewedPages(t *testing.T) {
	t.Parallel()
	fw, client := newFakeWiki(t, map[string]func(url.Values) string{
		"oldreviewedpages": func(url.Values) string {
			return `{"query":{"oldreviewedpages":[
				{"pageid":10,"ns":0,"title":"Helsinki","revid":120,"stable_revid":100,"pending_since":"2024-05-01T10:00:00Z"},
				{"pageid":11,"ns":0,"title":"Espoo","revid":130,"pendingSince":"2024-05-02T10:00:00Z"}
			]}}`
		},
	})

	pages, err := client.OldReviewedPages(context.Background(), 5)
	require.NoError(t, err)

	req := fw.last()
	assert.Equal(t, "query", req.Get("action"))
	assert.Equal(t, "0", req.Get("ornamespace"))
	assert.Equal(t, "5", req.Get("orlimit"))
	assert.Equal(t, "2", req.Get("formatversion"))

	require.Len(t, pages, 2)
	assert.Equal(t, ReviewedPage{
		PageID: 10, Title: "Helsinki", StableRevID: 100,
		PendingSince: ptr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
	}, pages[0])
	assert.Equal(t, int64(130), pages[1].StableRevID, "falls back to revid")
	require.NotNil(t, pages[1].PendingSince)
}

func TestOldReviewedPages_NonPositiveLimit(t *testing.T) {
	t.Parallel()
	fw, client := newFakeWiki(t, nil)

	pages, err := client.OldReviewedPages(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Empty(t, fw.requests)
}

func TestPendingRevisions_SkipsStableAndFollowsContinuation(t *testing.T) {
	t.Parallel()
	fw, client := newFakeWiki(t, map[string]func(url.Values) string{
		"revisions": func(q url.Values) string {
			if q.Get("rvcontinue") == "" {
				return `{"continue":{"rvcontinue":"20240501|102","continue":"||"},"query":{"pages":[{"pageid":10,"revisions":[
					{"revid":100,"parentid":99,"user":"Old","timestamp":"2024-05-01T09:00:00Z","slots":{"main":{"content":""}}},
					{"revid":101,"parentid":100,"user":"Alice","userid":5,"timestamp":"2024-05-01T10:00:00Z","comment":"typo","sha1":"abc",
					 "tags":["mobile edit"],"slots":{"main":{"content":"Text [[Category:Cities]] [[Luokka:Kaupungit|K]]"}}}
				]}]}}`
			}
			return `{"query":{"pages":[{"pageid":10,"revisions":[
				{"revid":102,"parentid":101,"user":"Bob","timestamp":"2024-05-01T11:00:00Z","slots":{"main":{"content":"[[:Category:Link]]"}}}
			]}]}}`
		},
	})

	revs, err := client.PendingRevisions(context.Background(), 10, 100)
	require.NoError(t, err)

	first := fw.requests[0]
	assert.Equal(t, "10", first.Get("pageids"))
	assert.Equal(t, "newer", first.Get("rvdir"))
	assert.Equal(t, "100", first.Get("rvstartid"))
	assert.Equal(t, "main", first.Get("rvslots"))
	assert.Equal(t, "20240501|102", fw.last().Get("rvcontinue"))

	require.Len(t, revs, 2)
	assert.Equal(t, int64(101), revs[0].RevID)
	require.NotNil(t, revs[0].UserID)
	assert.Equal(t, int64(5), *revs[0].UserID)
	assert.Equal(t, []string{"mobile edit"}, revs[0].Tags)
	assert.Equal(t, []string{"Cities", "Kaupungit"}, revs[0].Categories)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), revs[0].Timestamp)
	assert.Empty(t, revs[1].Categories)
}

func TestRevisionWikitext(t *testing.T) {
	t.Parallel()
	fw, client := newFakeWiki(t, map[string]func(url.Values) string{
		"revisions": func(url.Values) string {
			return `{"query":{"pages":[{"pageid":1,"revisions":[{"revid":7,"slots":{"main":{"content":"Hello"}}}]}]}}`
		},
	})

	text, err := client.RevisionWikitext(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "7", fw.last().Get("revids"))
}

func TestUsers(t *testing.T) {
	t.Parallel()
	fw, client := newFakeWiki(t, map[string]func(url.Values) string{
		"users": func(url.Values) string {
			return `{"query":{"users":[
				{"userid":1,"name":"Alice","groups":["*","user","autoreviewer"]},
				{"userid":2,"name":"Vandal","groups":["*","user"],"blockid":99,"blockedby":"Admin"},
				{"name":"Ghost","missing":true}
			]}}`
		},
	})

	users, err := client.Users(context.Background(), []string{"Alice", "Vandal", "Ghost"})
	require.NoError(t, err)

	assert.Equal(t, "Alice|Vandal|Ghost", fw.last().Get("ususers"))
	assert.Equal(t, "groups|blockinfo", fw.last().Get("usprop"))
	require.Len(t, users, 3)
	assert.Equal(t, []string{"*", "user", "autoreviewer"}, users[0].Groups)
	assert.False(t, users[0].Blocked)
	assert.True(t, users[1].Blocked)
	assert.True(t, users[2].Missing)
}

func TestRecentChanges(t *testing.T) {
	t.Parallel()
	fw, client := newFakeWiki(t, map[string]func(url.Values) string{
		"recentchanges": func(url.Values) string {
			return `{"query":{"recentchanges":[
				{"type":"edit","title":"A","user":"Alice","timestamp":"2024-05-01T10:00:00Z","comment":"c","old_revid":1,"revid":2},
				{"type":"new","title":"B","user":"Bob","timestamp":"2024-05-01T09:00:00Z","old_revid":0,"revid":3}
			]}}`
		},
	})

	changes, err := client.RecentChanges(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", fw.last().Get("rclimit"))
	require.Len(t, changes, 1)
	assert.Equal(t, RecentChange{
		Type: "edit", Title: "A", User: "Alice", Comment: "c", OldRevID: 1, RevID: 2,
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}, changes[0])
}

func TestQuery_APIErrorEnvelope(t *testing.T) {
	t.Parallel()
	_, client := newFakeWiki(t, map[string]func(url.Values) string{
		"revisions": func(url.Values) string {
			return `{"error":{"code":"nosuchrevid","info":"There is no revision with ID 7."}}`
		},
	})

	_, err := client.RevisionWikitext(context.Background(), 7)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "nosuchrevid", apiErr.Code)
	assert.True(t, IsNotFound(err))
}

func TestQuery_HTTPStatusError(t *testing.T) {
	t.Parallel()
	_, client := newFakeWiki(t, nil)

	_, err := client.Users(context.Background(), []string{"Alice"})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.False(t, IsNotFound(err))
}

func ptr[T any](v T) *T {
	return &v
}
