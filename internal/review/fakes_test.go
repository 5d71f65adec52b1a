package review

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/metalagman/pendingreview/internal/db"
	"github.com/metalagman/pendingreview/internal/mediawiki"
	"github.com/metalagman/pendingreview/internal/profilecache"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/metalagman/pendingreview/internal/superset"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

type fakeWiki struct {
	mu sync.Mutex

	pages        []mediawiki.ReviewedPage
	revisions    map[int64][]mediawiki.Revision
	revisionErrs map[int64]error
	wikitext     map[int64]string
	users        map[string]mediawiki.User
	usersErr     error
	changes      []mediawiki.RecentChange
	changesErr   error

	userCalls     [][]string
	wikitextCalls []int64
}

func (f *fakeWiki) OldReviewedPages(_ context.Context, limit int) ([]mediawiki.ReviewedPage, error) {
	if len(f.pages) > limit {
		return f.pages[:limit], nil
	}
	return f.pages, nil
}

func (f *fakeWiki) PendingRevisions(_ context.Context, pageID, _ int64) ([]mediawiki.Revision, error) {
	if err := f.revisionErrs[pageID]; err != nil {
		return nil, err
	}
	return f.revisions[pageID], nil
}

func (f *fakeWiki) RevisionWikitext(_ context.Context, revID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wikitextCalls = append(f.wikitextCalls, revID)
	text, ok := f.wikitext[revID]
	if !ok {
		return "", errUpstream
	}
	return text, nil
}

func (f *fakeWiki) Users(_ context.Context, names []string) ([]mediawiki.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls = append(f.userCalls, append([]string(nil), names...))
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	var out []mediawiki.User
	for _, name := range names {
		if u, ok := f.users[name]; ok {
			out = append(out, u)
		} else {
			out = append(out, mediawiki.User{Name: name, Missing: true})
		}
	}
	return out, nil
}

func (f *fakeWiki) RecentChanges(_ context.Context, limit int) ([]mediawiki.RecentChange, error) {
	if f.changesErr != nil {
		return nil, f.changesErr
	}
	if len(f.changes) > limit {
		return f.changes[:limit], nil
	}
	return f.changes, nil
}

type fakeSuperset struct {
	pages  []superset.Page
	err    error
	calls  int
	schema string
}

func (f *fakeSuperset) PendingPages(_ context.Context, schema string, _ int, _ time.Time) ([]superset.Page, error) {
	f.calls++
	f.schema = schema
	return f.pages, f.err
}

type testEnv struct {
	svc   *Service
	store *store.Store
	runs  *run.Store
	wiki  store.Wiki
	api   *fakeWiki
	cache profilecache.Mem
}

func newTestEnv(t *testing.T, source func(api *fakeWiki) Fetcher, opts Options) *testEnv {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	env := &testEnv{
		store: store.New(conn),
		runs:  run.NewStore(conn),
		api:   &fakeWiki{},
		cache: profilecache.NewMem(64, time.Hour),
	}
	if opts.Wikis == nil {
		opts.Wikis = []store.Wiki{{
			Name: "fi.wikipedia", Code: "fi", Family: "wikipedia",
			APIEndpoint: "https://fi.wikipedia.org/w/api.php", ScriptPath: "/w",
		}}
	}
	if opts.ProfileMaxAge == 0 {
		opts.ProfileMaxAge = 2 * time.Hour
	}
	factory := func(store.Wiki) WikiAPI { return env.api }
	env.svc = New(env.store, env.runs, env.cache, source(env.api), factory, opts)

	wikis, err := env.svc.Wikis(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, wikis)
	env.wiki = wikis[0]
	return env
}

func apiSource(api *fakeWiki) Fetcher {
	return APISource{Client: func(store.Wiki) WikiAPI { return api }, Concurrency: 2}
}

func int64p(v int64) *int64 { return &v }
