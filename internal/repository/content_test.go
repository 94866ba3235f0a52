package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"creditfeed/internal/models"
	"creditfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redditItem(id string, published time.Time) models.ContentItem {
	return models.ContentItem{
		Source:      models.SourceReddit,
		OriginalID:  id,
		Title:       "title " + id,
		Content:     "body " + id,
		URL:         "https://reddit.com/" + id,
		Author:      "author",
		PublishedAt: published,
	}
}

func TestContentRepository_UpsertBatch(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	res, err := repo.UpsertBatch(ctx, []models.ContentItem{redditItem("a", now), redditItem("b", now)})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Matched: 0, Created: 2}, res)

	t.Run("re-ingest updates supplier fields only", func(t *testing.T) {
		var stored models.ContentItem
		require.NoError(t, db.Where("original_id = ?", "a").First(&stored).Error)
		user := testutil.CreateUser(t, db, "saver", "")
		_, err := repo.AddSave(ctx, user.ID, stored.ID)
		require.NoError(t, err)
		_, err = repo.IncrementShare(ctx, stored.ID)
		require.NoError(t, err)

		updated := redditItem("a", now)
		updated.Title = "edited"
		res, err := repo.UpsertBatch(ctx, []models.ContentItem{updated, redditItem("c", now)})
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Matched: 1, Created: 1}, res)

		item, err := repo.GetByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", item.Title)
		assert.Equal(t, 1, item.ShareCount)
		assert.Equal(t, []uint{user.ID}, item.SavedBy)
	})

	t.Run("duplicates within a batch collapse", func(t *testing.T) {
		first := redditItem("d", now)
		second := redditItem("d", now)
		second.Title = "last wins"
		res, err := repo.UpsertBatch(ctx, []models.ContentItem{first, second})
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Matched: 0, Created: 1}, res)

		var count int64
		db.Model(&models.ContentItem{}).Where("original_id = ?", "d").Count(&count)
		assert.Equal(t, int64(1), count)
		var stored models.ContentItem
		require.NoError(t, db.Where("original_id = ?", "d").First(&stored).Error)
		assert.Equal(t, "last wins", stored.Title)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		res, err := repo.UpsertBatch(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{}, res)
	})

	t.Run("invalid source rejected", func(t *testing.T) {
		bad := redditItem("x", now)
		bad.Source = "myspace"
		_, err := repo.UpsertBatch(ctx, []models.ContentItem{bad})
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})
}

func TestContentRepository_FindPage(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		testutil.CreateItem(t, db, redditItem(fmt.Sprintf("p%02d", i), base.Add(time.Duration(i)*time.Hour)))
	}
	deleted := redditItem("gone", base.Add(48*time.Hour))
	deleted.Title = "[deleted]"
	placeholder := testutil.CreateItem(t, db, deleted)
	removed := redditItem("mod", base.Add(49*time.Hour))
	removed.Author = "[removed]"
	testutil.CreateItem(t, db, removed)
	tweet := redditItem("t1", base.Add(-time.Hour))
	tweet.Source = models.SourceTwitter
	testutil.CreateItem(t, db, tweet)

	page, err := repo.FindPage(ctx, ContentFilter{}, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(13), page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "p11", page.Items[0].OriginalID)
	for i := 1; i < len(page.Items); i++ {
		assert.False(t, page.Items[i].PublishedAt.After(page.Items[i-1].PublishedAt))
	}

	last, err := repo.FindPage(ctx, ContentFilter{}, 3, 5)
	require.NoError(t, err)
	require.Len(t, last.Items, 3)
	assert.Equal(t, "t1", last.Items[2].OriginalID)

	twitter, err := repo.FindPage(ctx, ContentFilter{Source: models.SourceTwitter}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), twitter.TotalItems)

	clamped, err := repo.FindPage(ctx, ContentFilter{}, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, MaxPageSize, clamped.PageSize)

	empty, err := repo.FindPage(ctx, ContentFilter{}, 9, 5)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	t.Run("hidden placeholders stay in the store", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, placeholder.ID)
		require.NoError(t, err)
		assert.Equal(t, "[deleted]", stored.Title)

		res, err := repo.UpsertBatch(ctx, []models.ContentItem{deleted})
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Matched: 1, Created: 0}, res)

		page, err := repo.FindPage(ctx, ContentFilter{}, 1, MaxPageSize)
		require.NoError(t, err)
		assert.Equal(t, int64(13), page.TotalItems)
	})
}

func TestContentRepository_Membership(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "member", "")
	item := testutil.CreateItem(t, db, redditItem("m1", time.Now()))

	added, err := repo.AddSave(ctx, user.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddSave(ctx, user.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, added)

	saved, err := repo.ListSavedBy(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, saved.Items, 1)
	assert.True(t, saved.Items[0].IsSavedBy(user.ID))

	removed, err := repo.RemoveSave(ctx, user.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.RemoveSave(ctx, user.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	reported, err := repo.AddReport(ctx, user.ID, item.ID, "spam")
	require.NoError(t, err)
	assert.True(t, reported)
	reported, err = repo.AddReport(ctx, user.ID, item.ID, "again")
	require.NoError(t, err)
	assert.False(t, reported)

	flagged, err := repo.ListReported(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, flagged.Items, 1)
	assert.Equal(t, []uint{user.ID}, flagged.Items[0].ReportedBy)
	assert.Equal(t, "spam", flagged.Items[0].Reports[0].Reason)

	cleared, err := repo.ClearReports(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.ReportedBy)
	assert.Empty(t, cleared.Reports)

	shared, err := repo.IncrementShare(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, shared)
}

func TestContentRepository_Delete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "deleter", "")
	item := testutil.CreateItem(t, db, redditItem("del", time.Now()))
	_, err := repo.AddSave(ctx, user.ID, item.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, item.ID))

	_, err = repo.GetByID(ctx, item.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	var saves int64
	db.Model(&models.ContentSave{}).Count(&saves)
	assert.Zero(t, saves)

	err = repo.Delete(ctx, item.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	ok, err := repo.Exists(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedupeBatch(t *testing.T) {
	a := models.ContentItem{Source: models.SourceReddit, OriginalID: "1", Title: "a"}
	b := models.ContentItem{Source: models.SourceTwitter, OriginalID: "1", Title: "b"}
	a2 := models.ContentItem{Source: models.SourceReddit, OriginalID: "1", Title: "a2"}

	out := dedupeBatch([]models.ContentItem{a, b, a2})
	require.Len(t, out, 2)
	assert.Equal(t, "a2", out[0].Title)
	assert.Equal(t, "b", out[1].Title)
}
