package repository

import (
	"context"
	"errors"

	"creditfeed/internal/cache"
	"creditfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// supplierColumns are the fields a refresh may overwrite on an existing item.
// Engagement state (saves, reports, share_count) is never touched by ingestion.
var supplierColumns = []string{
	"title", "content", "url", "author", "image_url", "published_at", "updated_at",
}

// ContentFilter narrows a feed query.
type ContentFilter struct {
	Source models.Source
}

// ContentPage is one page of content items plus pagination metadata.
type ContentPage struct {
	Items      []models.ContentItem `json:"items"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalItems int64                `json:"total_items"`
	TotalPages int                  `json:"total_pages"`
}

// UpsertResult counts how a batch landed: Matched items already existed by
// natural key, Created items are new.
type UpsertResult struct {
	Matched int `json:"matched"`
	Created int `json:"created"`
}

// ContentRepository defines persistence operations for content items and
// the per-user engagement rows attached to them.
type ContentRepository interface {
	UpsertBatch(ctx context.Context, items []models.ContentItem) (UpsertResult, error)
	FindPage(ctx context.Context, filter ContentFilter, page, pageSize int) (*ContentPage, error)
	GetByID(ctx context.Context, id uint) (*models.ContentItem, error)
	// Exists reports whether an item is present, taking a shared row lock
	// where the dialect supports it.
	Exists(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) error
	ClearReports(ctx context.Context, id uint) (*models.ContentItem, error)
	ListSavedBy(ctx context.Context, userID uint, page, pageSize int) (*ContentPage, error)
	ListReported(ctx context.Context, page, pageSize int) (*ContentPage, error)
	// AddSave, RemoveSave and AddReport report whether the membership changed.
	AddSave(ctx context.Context, userID, itemID uint) (bool, error)
	RemoveSave(ctx context.Context, userID, itemID uint) (bool, error)
	AddReport(ctx context.Context, userID, itemID uint, reason string) (bool, error)
	// IncrementShare bumps share_count and reports whether the item exists.
	IncrementShare(ctx context.Context, itemID uint) (bool, error)
	WithTx(tx *gorm.DB) ContentRepository
}

type contentRepository struct {
	db        *gorm.DB
	feedCache bool
}

// ContentOption configures a content repository.
type ContentOption func(*contentRepository)

// WithoutFeedCache makes FindPage always read the database.
func WithoutFeedCache() ContentOption {
	return func(r *contentRepository) { r.feedCache = false }
}

// NewContentRepository returns a new ContentRepository implementation.
func NewContentRepository(db *gorm.DB, opts ...ContentOption) ContentRepository {
	r := &contentRepository{db: db, feedCache: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithTx binds the repository to tx. Transactions never read the feed cache.
func (r *contentRepository) WithTx(tx *gorm.DB) ContentRepository {
	return &contentRepository{db: tx}
}

type naturalKey struct {
	source     models.Source
	originalID string
}

// dedupeBatch collapses repeated natural keys; the last occurrence wins and
// keeps the position of the first.
func dedupeBatch(items []models.ContentItem) []models.ContentItem {
	index := make(map[naturalKey]int, len(items))
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		k := naturalKey{item.Source, item.OriginalID}
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}

func (r *contentRepository) UpsertBatch(ctx context.Context, items []models.ContentItem) (UpsertResult, error) {
	if len(items) == 0 {
		return UpsertResult{}, nil
	}
	for _, item := range items {
		if !item.Source.Valid() {
			return UpsertResult{}, models.NewValidationError("unsupported content source: " + string(item.Source))
		}
		if item.OriginalID == "" {
			return UpsertResult{}, models.NewValidationError("content item is missing its original id")
		}
	}

	batch := dedupeBatch(items)
	for i := range batch {
		batch[i].ID = 0
		batch[i].ShareCount = 0
		batch[i].Saves = nil
		batch[i].Reports = nil
	}

	var result UpsertResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matched, err := countExisting(tx, batch)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "original_id"}},
			DoUpdates: clause.AssignmentColumns(supplierColumns),
		}).CreateInBatches(&batch, 100).Error; err != nil {
			return err
		}
		result.Matched = matched
		result.Created = len(batch) - matched
		return nil
	})
	if err != nil {
		return UpsertResult{}, storageError(err)
	}

	cache.InvalidateFeed(ctx)
	return result, nil
}

// countExisting counts how many of the batch's natural keys are already stored.
func countExisting(tx *gorm.DB, batch []models.ContentItem) (int, error) {
	bySource := make(map[models.Source][]string)
	for _, item := range batch {
		bySource[item.Source] = append(bySource[item.Source], item.OriginalID)
	}
	total := 0
	for source, ids := range bySource {
		var n int64
		if err := tx.Model(&models.ContentItem{}).
			Where("source = ? AND original_id IN ?", source, ids).
			Count(&n).Error; err != nil {
			return 0, err
		}
		total += int(n)
	}
	return total, nil
}

// visible excludes items whose title or author is an upstream placeholder.
func (r *contentRepository) visible(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("content_items.title NOT IN ?", models.PlaceholderTexts).
		Where("content_items.author NOT IN ?", models.PlaceholderTexts)
}

func withEngagement(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Saves", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Reports", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
}

// paginate counts and loads one page from the query scope produced by base.
func paginate(base func() *gorm.DB, order string, page, pageSize int) (*ContentPage, error) {
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, storageError(err)
	}

	items := make([]models.ContentItem, 0, pageSize)
	if err := withEngagement(base()).
		Order(order).
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error; err != nil {
		return nil, storageError(err)
	}

	return &ContentPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func (r *contentRepository) FindPage(ctx context.Context, filter ContentFilter, page, pageSize int) (*ContentPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	load := func() (*ContentPage, error) {
		return paginate(func() *gorm.DB {
			q := r.visible(ctx)
			if filter.Source != "" {
				q = q.Where("content_items.source = ?", filter.Source)
			}
			return q
		}, "content_items.published_at DESC, content_items.id DESC", page, pageSize)
	}

	if !r.feedCache || !cache.CacheableFeedPage(page) {
		return load()
	}

	var result ContentPage
	err := cache.Aside(ctx, cache.FeedPageKey(string(filter.Source), page, pageSize), &result, cache.FeedPageTTL, func() error {
		p, err := load()
		if err != nil {
			return err
		}
		result = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *contentRepository) GetByID(ctx context.Context, id uint) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := withEngagement(r.db.WithContext(ctx)).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Content item", id)
		}
		return nil, storageError(err)
	}
	return &item, nil
}

func (r *contentRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var ids []uint
	if err := lockShared(r.db.WithContext(ctx)).
		Model(&models.ContentItem{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return false, storageError(err)
	}
	return len(ids) == 1, nil
}

func (r *contentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_item_id = ?", id).Delete(&models.ContentSave{}).Error; err != nil {
			return err
		}
		if err := tx.Where("content_item_id = ?", id).Delete(&models.ContentReport{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ContentItem{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Content item", id)
		}
		return nil
	})
	if err != nil {
		return storageError(err)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *contentRepository) ClearReports(ctx context.Context, id uint) (*models.ContentItem, error) {
	var item *models.ContentItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := r.WithTx(tx)
		ok, err := txRepo.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewNotFoundError("Content item", id)
		}
		if err := tx.Where("content_item_id = ?", id).Delete(&models.ContentReport{}).Error; err != nil {
			return err
		}
		item, err = txRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, storageError(err)
	}
	cache.InvalidateFeed(ctx)
	return item, nil
}

func (r *contentRepository) ListSavedBy(ctx context.Context, userID uint, page, pageSize int) (*ContentPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	return paginate(func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.ContentItem{}).
			Joins("JOIN content_saves ON content_saves.content_item_id = content_items.id AND content_saves.user_id = ?", userID)
	}, "content_saves.created_at DESC, content_items.id DESC", page, pageSize)
}

func (r *contentRepository) ListReported(ctx context.Context, page, pageSize int) (*ContentPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	return paginate(func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.ContentItem{}).
			Where("EXISTS (SELECT 1 FROM content_reports WHERE content_reports.content_item_id = content_items.id)")
	}, "content_items.updated_at DESC, content_items.id DESC", page, pageSize)
}

func (r *contentRepository) AddSave(ctx context.Context, userID, itemID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ContentSave{UserID: userID, ContentItemID: itemID})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *contentRepository) RemoveSave(ctx context.Context, userID, itemID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND content_item_id = ?", userID, itemID).
		Delete(&models.ContentSave{})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *contentRepository) AddReport(ctx context.Context, userID, itemID uint, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ContentReport{UserID: userID, ContentItemID: itemID, Reason: reason})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *contentRepository) IncrementShare(ctx context.Context, itemID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("id = ?", itemID).
		UpdateColumn("share_count", gorm.Expr("share_count + ?", 1))
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
