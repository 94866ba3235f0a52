package server

import (
	"net/http"
	"testing"

	"creditfeed/internal/models"
	"creditfeed/internal/repository"
	"creditfeed/internal/service"
	"creditfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFeed(t *testing.T) {
	ts := newTestServer(t)
	testutil.CreateItem(t, ts.db, models.ContentItem{Source: models.SourceReddit, OriginalID: "r1", Author: "a"})
	testutil.CreateItem(t, ts.db, models.ContentItem{Source: models.SourceTwitter, OriginalID: "t1", Author: "b"})
	testutil.CreateItem(t, ts.db, models.ContentItem{Source: models.SourceReddit, OriginalID: "r2", Title: "[deleted]", Author: "c"})

	tests := []struct {
		name   string
		query  string
		status int
		total  int64
	}{
		{"all sources", "", http.StatusOK, 2},
		{"one source", "?source=reddit", http.StatusOK, 1},
		{"source is case-insensitive", "?source=Twitter", http.StatusOK, 1},
		{"unknown source", "?source=myspace", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.request(t, http.MethodGet, "/api/feed"+tt.query, nil, "")
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			page := decode[repository.ContentPage](t, resp)
			assert.Equal(t, tt.total, page.TotalItems)
			for _, item := range page.Items {
				assert.NotEqual(t, "[deleted]", item.Title)
			}
		})
	}
}

func TestGetFeedItem(t *testing.T) {
	ts := newTestServer(t)
	item := testutil.CreateItem(t, ts.db, models.ContentItem{OriginalID: "r1", URL: "https://example.com/r1"})

	resp := ts.request(t, http.MethodGet, itemPath(item.ID, ""), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.ContentItem](t, resp)
	assert.Equal(t, "r1", got.OriginalID)
	assert.Empty(t, got.SavedBy)

	resp = ts.request(t, http.MethodGet, itemPath(item.ID+100, ""), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, errorCode(t, resp))
}

func TestInteractionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "engaged", models.RoleUser)
	item := testutil.CreateItem(t, ts.db, models.ContentItem{OriginalID: "r1", URL: "https://example.com/r1"})
	token := ts.token(t, user)

	credits := models.DefaultCredits

	t.Run("interactions require auth", func(t *testing.T) {
		resp := ts.request(t, http.MethodPost, itemPath(item.ID, "save"), nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("save credits once", func(t *testing.T) {
		resp := ts.request(t, http.MethodPost, itemPath(item.ID, "save"), nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		credits += service.SaveCredits
		assert.Equal(t, credits, decode[service.InteractionResult](t, resp).Credits)

		resp = ts.request(t, http.MethodPost, itemPath(item.ID, "save"), nil, token)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("saved feed lists the item", func(t *testing.T) {
		resp := ts.request(t, http.MethodGet, "/api/feed/saved", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := decode[repository.ContentPage](t, resp)
		require.Len(t, page.Items, 1)
		assert.Equal(t, item.ID, page.Items[0].ID)
		assert.Equal(t, []uint{user.ID}, page.Items[0].SavedBy)
	})

	t.Run("share is repeatable", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp := ts.request(t, http.MethodPost, itemPath(item.ID, "share"), nil, token)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			credits += service.ShareCredits
			result := decode[service.InteractionResult](t, resp)
			assert.Equal(t, credits, result.Credits)
			assert.Equal(t, item.URL, result.ShareURL)
		}
	})

	t.Run("report needs a reason and happens once", func(t *testing.T) {
		resp := ts.request(t, http.MethodPost, itemPath(item.ID, "report"), map[string]string{"reason": "  "}, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = ts.request(t, http.MethodPost, itemPath(item.ID, "report"), map[string]string{"reason": "spam"}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		credits += service.ReportCredits
		assert.Equal(t, credits, decode[service.InteractionResult](t, resp).Credits)

		resp = ts.request(t, http.MethodPost, itemPath(item.ID, "report"), map[string]string{"reason": "spam again"}, token)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unsave keeps credits", func(t *testing.T) {
		resp := ts.request(t, http.MethodDelete, itemPath(item.ID, "save"), nil, token)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = ts.request(t, http.MethodDelete, itemPath(item.ID, "save"), nil, token)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		assert.Equal(t, credits, reloadUser(t, ts.db, user.ID).Credits)
	})

	t.Run("missing item", func(t *testing.T) {
		resp := ts.request(t, http.MethodPost, itemPath(item.ID+100, "share"), nil, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRefreshFeed(t *testing.T) {
	ts := newTestServer(t,
		stubSupplier{source: models.SourceTwitter, err: errUpstream},
		stubSupplier{source: models.SourceReddit, items: sampleItems(models.SourceReddit, 5)},
	)
	user := testutil.CreateUser(t, ts.db, "refresher", models.RoleUser)
	token := ts.token(t, user)

	resp := ts.request(t, http.MethodPost, "/api/feed/refresh", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/feed/refresh", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[service.RefreshResult](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, 5, result.TotalCount)
	assert.False(t, result.PerSource[models.SourceTwitter].Success)
	assert.NotEmpty(t, result.PerSource[models.SourceTwitter].Error)
	assert.Equal(t, 5, result.PerSource[models.SourceReddit].Count)

	// A second refresh matches the same natural keys instead of duplicating.
	resp = ts.request(t, http.MethodPost, "/api/feed/refresh", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decode[service.RefreshResult](t, resp)
	assert.Equal(t, 5, again.PerSource[models.SourceReddit].Matched)

	resp = ts.request(t, http.MethodGet, "/api/feed", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(5), decode[repository.ContentPage](t, resp).TotalItems)
}
