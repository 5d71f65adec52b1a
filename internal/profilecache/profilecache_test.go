package profilecache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/metalagman/pendingreview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	profile := store.ProfileFromGroups(1, "Alice", []string{"autoreviewer"}, false)
	profile.FetchedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	_, ok, err := s.Get(ctx, 1, "Alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, profile))

	got, ok, err := s.Get(ctx, 1, "Alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, profile.Groups, got.Groups)
	assert.True(t, got.IsAutoreviewed)
	assert.True(t, profile.FetchedAt.Equal(got.FetchedAt))

	_, ok, err = s.Get(ctx, 2, "Alice")
	require.NoError(t, err)
	assert.False(t, ok, "profiles are scoped per wiki")

	require.NoError(t, s.Purge(ctx, 1, "Alice"))
	require.NoError(t, s.Purge(ctx, 1, "Alice"))
	_, ok, err = s.Get(ctx, 1, "Alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMem(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMem(16, time.Minute))
}

func TestMem_Expires(t *testing.T) {
	t.Parallel()
	m := NewMem(16, 10*time.Millisecond)
	require.NoError(t, m.Set(context.Background(), store.EditorProfile{WikiID: 1, Username: "Bob"}))

	assert.Eventually(t, func() bool {
		_, ok, _ := m.Get(context.Background(), 1, "Bob")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRedis(t *testing.T) {
	redisURL := os.Getenv("PENDINGREVIEW_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("PENDINGREVIEW_TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), redisURL, 100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	exerciseStore(t, r)
}

func TestNewRedis_BadURL(t *testing.T) {
	t.Parallel()
	_, err := NewRedis(context.Background(), "not-a-url", 10, time.Minute)
	assert.ErrorContains(t, err, "parse redis url")
}
