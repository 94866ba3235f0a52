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

func TestProfileCompletionFlow(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "profiler", models.RoleUser)
	token := ts.token(t, user)

	resp := ts.request(t, http.MethodPost, "/api/credits/award/profile", nil, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "incomplete profile")

	resp = ts.request(t, http.MethodPut, "/api/profile", map[string]string{"name": "Pro", "bio": "Reads things"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.User](t, resp).ProfileCompleted)

	resp = ts.request(t, http.MethodPut, "/api/profile", map[string]string{"name": "Pro", "bio": "Reads things", "avatar_url": "ftp://nope"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.request(t, http.MethodPut, "/api/profile", map[string]string{"name": "Pro", "bio": "Reads things", "avatar_url": "https://example.com/a.png"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/credits/award/profile", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.DefaultCredits+service.ProfileCompletionCredits, decode[service.InteractionResult](t, resp).Credits)

	resp = ts.request(t, http.MethodPost, "/api/credits/award/profile", nil, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "bonus is single-shot")

	resp = ts.request(t, http.MethodGet, "/api/profile", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[models.User](t, resp)
	assert.True(t, profile.ProfileCompleted)
	assert.Equal(t, "https://example.com/a.png", profile.Profile.AvatarURL)
}

func TestCreditEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "boss", models.RoleAdmin)
	user := testutil.CreateUser(t, ts.db, "earner", models.RoleUser)
	adminToken, userToken := ts.token(t, admin), ts.token(t, user)

	t.Run("adjust validates input", func(t *testing.T) {
		resp := ts.request(t, http.MethodPost, "/api/credits/adjust", map[string]any{"userId": user.ID, "amount": 0}, adminToken)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = ts.request(t, http.MethodPost, "/api/credits/adjust", map[string]any{"amount": 5}, adminToken)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = ts.request(t, http.MethodPost, "/api/credits/adjust", map[string]any{"userId": 9999, "amount": 5}, adminToken)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("adjust applies signed amounts", func(t *testing.T) {
		resp := ts.request(t, http.MethodPost, "/api/credits/adjust", map[string]any{"userId": user.ID, "amount": 25, "description": "contest prize"}, adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result := decode[service.AdjustCreditsResult](t, resp)
		assert.Equal(t, models.DefaultCredits+25, result.Credits)
		assert.Equal(t, "earner", result.Username)

		resp = ts.request(t, http.MethodPost, "/api/credits/adjust", map[string]any{"userId": user.ID, "amount": -5}, adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.DefaultCredits+20, decode[service.AdjustCreditsResult](t, resp).Credits)
	})

	t.Run("balance and history", func(t *testing.T) {
		resp := ts.request(t, http.MethodGet, "/api/credits/balance", nil, userToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.DefaultCredits+20, decode[map[string]int](t, resp)["credits"])

		resp = ts.request(t, http.MethodGet, "/api/credits/history?limit=1", nil, userToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		history := decode[service.CreditHistory](t, resp)
		assert.Equal(t, int64(2), history.Total)
		require.Len(t, history.Transactions, 1)
		assert.Equal(t, models.TxAdminAdjustment, history.Transactions[0].Type)
	})

	t.Run("reconcile finds no drift", func(t *testing.T) {
		resp := ts.request(t, http.MethodGet, "/api/admin/users/"+itoa(user.ID)+"/reconcile", nil, adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		report := decode[service.ReconcileReport](t, resp)
		assert.Equal(t, int64(20), report.LedgerSum)
		assert.Zero(t, report.Drift)
	})
}

func TestAdminUsersAndStats(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "boss", models.RoleAdmin)
	user := testutil.CreateUser(t, ts.db, "member", models.RoleUser)
	item := testutil.CreateItem(t, ts.db, models.ContentItem{OriginalID: "r1", URL: "https://example.com/r1"})
	adminToken := ts.token(t, admin)

	resp := ts.request(t, http.MethodPost, itemPath(item.ID, "save"), nil, ts.token(t, user))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/admin/users?limit=1", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[service.UserList](t, resp)
	assert.Equal(t, int64(2), list.Total)
	assert.Len(t, list.Users, 1)

	resp = ts.request(t, http.MethodGet, "/api/admin/users/"+itoa(user.ID), nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[service.UserDetail](t, resp)
	assert.Equal(t, "member", detail.User.Username)
	require.Len(t, detail.SavedItems, 1)
	assert.Len(t, detail.RecentTransactions, 1)

	resp = ts.request(t, http.MethodGet, "/api/admin/users/9999", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/admin/stats/users", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	userStats := decode[service.UserStats](t, resp)
	assert.Equal(t, int64(2), userStats.TotalUsers)
	assert.Equal(t, int64(1), userStats.Admins)

	resp = ts.request(t, http.MethodGet, "/api/admin/stats/feed", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feedStats := decode[service.FeedStats](t, resp)
	assert.Equal(t, int64(1), feedStats.TotalItems)
	assert.Equal(t, int64(1), feedStats.TotalSaves)

	resp = ts.request(t, http.MethodGet, "/api/admin/stats/credits", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	creditStats := decode[service.CreditStats](t, resp)
	assert.Equal(t, int64(service.SaveCredits), creditStats.TotalCredits)

	resp = ts.request(t, http.MethodGet, "/api/admin/feature-flags", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flags := decode[struct {
		Evaluated map[string]bool `json:"evaluated"`
	}](t, resp)
	assert.False(t, flags.Evaluated["feed_cache"])
	assert.True(t, flags.Evaluated["supplier_mock_fallback"])
}

func TestModerationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "moderator", models.RoleAdmin)
	user := testutil.CreateUser(t, ts.db, "reporter", models.RoleUser)
	keep := testutil.CreateItem(t, ts.db, models.ContentItem{OriginalID: "keep"})
	remove := testutil.CreateItem(t, ts.db, models.ContentItem{OriginalID: "remove"})
	adminToken, userToken := ts.token(t, admin), ts.token(t, user)

	for _, id := range []uint{keep.ID, remove.ID} {
		resp := ts.request(t, http.MethodPost, itemPath(id, "report"), map[string]string{"reason": "off topic"}, userToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := ts.request(t, http.MethodPost, itemPath(remove.ID, "save"), nil, userToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/admin/reported", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decode[repository.ContentPage](t, resp).TotalItems)

	resp = ts.request(t, http.MethodPut, "/api/admin/reported/"+itoa(keep.ID)+"/clear", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := decode[models.ContentItem](t, resp)
	assert.Empty(t, cleared.ReportedBy)
	assert.Empty(t, cleared.Reports)

	resp = ts.request(t, http.MethodDelete, "/api/admin/reported/"+itoa(remove.ID), nil, adminToken)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.request(t, http.MethodDelete, "/api/admin/reported/"+itoa(remove.ID), nil, adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/admin/reported", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[repository.ContentPage](t, resp).TotalItems)

	resp = ts.request(t, http.MethodGet, "/api/feed/saved", nil, userToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[repository.ContentPage](t, resp).Items, "removal drops saves with the item")

	// Earned credits survive moderation.
	assert.Equal(t, models.DefaultCredits+2*service.ReportCredits+service.SaveCredits, reloadUser(t, ts.db, user.ID).Credits)
}
