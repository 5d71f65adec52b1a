package profilecache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/metalagman/pendingreview/internal/store"
)

// Mem is an in-process cache with a fixed capacity and TTL.
type Mem struct {
	Data *expirable.LRU[string, store.EditorProfile]
}

var _ Store = Mem{}

// NewMem creates a cache holding at most capacity profiles for ttl each.
func NewMem(capacity int, ttl time.Duration) Mem {
	return Mem{
		Data: expirable.NewLRU[string, store.EditorProfile](capacity, nil, ttl),
	}
}

func (m Mem) Get(_ context.Context, wikiID int64, username string) (store.EditorProfile, bool, error) {
	p, ok := m.Data.Get(cacheKey(wikiID, username))
	return p, ok, nil
}

func (m Mem) Set(_ context.Context, profile store.EditorProfile) error {
	m.Data.Add(cacheKey(profile.WikiID, profile.Username), profile)
	return nil
}

func (m Mem) Purge(_ context.Context, wikiID int64, username string) error {
	m.Data.Remove(cacheKey(wikiID, username))
	return nil
}
