package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	FeedPageKeyPrefix = "feed:%s:%d:%d"
	FeedPagePattern   = "feed:*"
	QuotaKeyPrefix    = "quota:%s:%s"
	RevokedKeyPrefix  = "blacklist:%s"
)

const (
	UserTTL     = 5 * time.Minute
	FeedPageTTL = 2 * time.Minute
)

// feedCachedPages bounds cache-aside to the pages most clients read.
const feedCachedPages = 3

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// FeedPageKey keys one feed page; source "" means all sources.
func FeedPageKey(source string, page, pageSize int) string {
	if source == "" {
		source = "all"
	}
	return fmt.Sprintf(FeedPageKeyPrefix, source, page, pageSize)
}

// CacheableFeedPage reports whether a feed page should go through the cache.
func CacheableFeedPage(page int) bool {
	return page >= 1 && page <= feedCachedPages
}

// QuotaKey keys a supplier's call counter for one quota period.
func QuotaKey(source, period string) string {
	return fmt.Sprintf(QuotaKeyPrefix, source, period)
}

// RevokedTokenKey marks a token id as logged out until the token expires.
func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedKeyPrefix, jti)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateFeed drops every cached feed page.
func InvalidateFeed(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, FeedPagePattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
