package supplier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"creditfeed/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twitterSearchJSON = `{
  "data": [
    {"id": "101", "text": "Shipping a new release today", "author_id": "u1", "created_at": "2026-10-18T10:00:00.000Z"},
    {"id": "102", "text": "Anyone tried the new scheduler?", "author_id": "u9", "created_at": "2026-10-18T11:00:00.000Z"}
  ],
  "includes": {"users": [{"id": "u1", "name": "Ada L", "username": "ada", "profile_image_url": "https://pbs.twimg.com/ada.jpg"}]}
}`

func newTwitterServer(t *testing.T, status int, remaining string) (*httptest.Server, *http.Request) {
	t.Helper()
	seen := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = *r.Clone(context.Background())
		if remaining != "" {
			w.Header().Set("x-rate-limit-remaining", remaining)
			w.Header().Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Add(15*time.Minute).Unix(), 10))
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(twitterSearchJSON))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestTwitter_Fetch(t *testing.T) {
	srv, seen := newTwitterServer(t, http.StatusOK, "120")
	quota := NewMemoryQuota(100)
	tw := NewTwitter(TwitterOptions{BaseURL: srv.URL, BearerToken: "token", Query: "golang", RateBuffer: 10, Quota: quota})

	items, err := tw.Fetch(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, "/2/tweets/search/recent", seen.URL.Path)
	assert.Equal(t, "golang", seen.URL.Query().Get("query"))
	assert.Equal(t, "10", seen.URL.Query().Get("max_results"))
	assert.Equal(t, "Bearer token", seen.Header.Get("Authorization"))

	require.Len(t, items, 2)
	assert.Equal(t, models.SourceTwitter, items[0].Source)
	assert.Equal(t, "Tweet by Ada L (@ada)", items[0].Title)
	assert.Equal(t, "https://twitter.com/ada/status/101", items[0].URL)
	assert.Equal(t, "https://pbs.twimg.com/ada.jpg", items[0].ImageURL)
	assert.Equal(t, "Tweet by Unknown User (@unknown)", items[1].Title)

	remaining, err := quota.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, remaining)
}

func TestTwitter_RespectsLimit(t *testing.T) {
	srv, _ := newTwitterServer(t, http.StatusOK, "")
	tw := NewTwitter(TwitterOptions{BaseURL: srv.URL, BearerToken: "token"})

	items, err := tw.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestTwitter_Preconditions(t *testing.T) {
	srv, _ := newTwitterServer(t, http.StatusOK, "")

	_, err := NewTwitter(TwitterOptions{BaseURL: srv.URL}).Fetch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	quota := NewMemoryQuota(100)
	require.NoError(t, quota.SetRemaining(context.Background(), 3, time.Now().Add(time.Minute)))
	tw := NewTwitter(TwitterOptions{BaseURL: srv.URL, BearerToken: "token", RateBuffer: 10, Quota: quota})
	_, err = tw.Fetch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestTwitter_RateLimitedZeroesWindow(t *testing.T) {
	srv, _ := newTwitterServer(t, http.StatusTooManyRequests, "")
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	quota := NewQuotaTracker(client, models.SourceTwitter, 100)
	tw := NewTwitter(TwitterOptions{BaseURL: srv.URL, BearerToken: "token", RateBuffer: 10, Quota: quota})

	_, err := tw.Fetch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrRateLimited)

	remaining, err := quota.Remaining(context.Background())
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, err = tw.Fetch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}
