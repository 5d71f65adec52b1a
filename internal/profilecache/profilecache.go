// Package profilecache keeps recently resolved editor profiles close to the
// review service so page evaluations skip the database and the wiki API.
//
// Two implementations exist: an in-process expiring LRU and a shared Redis
// cache for deployments running more than one server.
package profilecache

import (
	"context"
	"strconv"

	"github.com/metalagman/pendingreview/internal/store"
)

// Store caches editor profiles per wiki and username.
type Store interface {
	// Get returns the cached profile and whether it was present.
	Get(ctx context.Context, wikiID int64, username string) (store.EditorProfile, bool, error)
	Set(ctx context.Context, profile store.EditorProfile) error
	Purge(ctx context.Context, wikiID int64, username string) error
}

func cacheKey(wikiID int64, username string) string {
	return strconv.FormatInt(wikiID, 10) + "/" + username
}
