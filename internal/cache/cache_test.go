package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			*dest = payload{Name: "feed", Count: 3}
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, "k", &first, UserTTL, fetch(&first)))
	var second payload
	require.NoError(t, Aside(ctx, "k", &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestAside_NoClientFallsThrough(t *testing.T) {
	SetClient(nil)
	var dest payload
	err := Aside(context.Background(), "k", &dest, UserTTL, func() error {
		dest.Name = "db"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "db", dest.Name)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := withMiniredis(t)
	var dest payload
	err := Aside(context.Background(), "k", &dest, UserTTL, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestInvalidateFeed(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, FeedPageKey("", 1, 10), payload{}, FeedPageTTL))
	require.NoError(t, SetJSON(ctx, FeedPageKey("reddit", 2, 10), payload{}, FeedPageTTL))
	require.NoError(t, SetJSON(ctx, UserKey(1), payload{}, UserTTL))

	InvalidateFeed(ctx)

	assert.False(t, mr.Exists("feed:all:1:10"))
	assert.False(t, mr.Exists("feed:reddit:2:10"))
	assert.True(t, mr.Exists("user:1"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:7", UserKey(7))
	assert.Equal(t, "feed:all:1:20", FeedPageKey("", 1, 20))
	assert.Equal(t, "quota:twitter:2026-10", QuotaKey("twitter", "2026-10"))
	assert.True(t, CacheableFeedPage(1))
	assert.False(t, CacheableFeedPage(4))
}
