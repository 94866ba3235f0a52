package service

import (
	"context"
	"time"

	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/repository"

	"gorm.io/gorm"
)

const recentTransactionLimit = 10

// UserStats summarizes the account base for the admin dashboard.
type UserStats struct {
	TotalUsers     int64   `json:"total_users"`
	Admins         int64   `json:"admins"`
	ActiveToday    int64   `json:"active_today"`
	NewToday       int64   `json:"new_today"`
	AverageCredits float64 `json:"average_credits"`
}

// SourceStats is the engagement breakdown for one source.
type SourceStats struct {
	Count   int64 `json:"count"`
	Saves   int64 `json:"saves"`
	Shares  int64 `json:"shares"`
	Reports int64 `json:"reports"`
}

type FeedStats struct {
	TotalItems    int64                         `json:"total_items"`
	ReportedItems int64                         `json:"reported_items"`
	TotalSaves    int64                         `json:"total_saves"`
	ItemsSaved    int64                         `json:"items_saved"`
	TotalShares   int64                         `json:"total_shares"`
	ItemsShared   int64                         `json:"items_shared"`
	BySource      map[models.Source]SourceStats `json:"by_source"`
}

// TypeTotal is the ledger volume for one transaction type.
type TypeTotal struct {
	Type  models.TransactionType `json:"type"`
	Total int64                  `json:"total"`
	Count int64                  `json:"count"`
}

type CreditStats struct {
	TotalCredits int64                      `json:"total_credits"`
	ByType       []TypeTotal                `json:"by_type"`
	Recent       []models.CreditTransaction `json:"recent"`
}

// UserDetail aggregates one user's account, saves and ledger for admin views.
type UserDetail struct {
	User               models.User                `json:"user"`
	SavedItems         []models.ContentItem       `json:"saved_items"`
	RecentTransactions []models.CreditTransaction `json:"recent_transactions"`
	Warnings           []string                   `json:"warnings,omitempty"`
}

// StatsService provides admin aggregation reporting.
type StatsService struct {
	db      *gorm.DB
	users   repository.UserRepository
	content repository.ContentRepository
	credits repository.CreditRepository
	now     func() time.Time
}

func NewStatsService(db *gorm.DB, users repository.UserRepository, content repository.ContentRepository, credits repository.CreditRepository) *StatsService {
	return &StatsService{db: db, users: users, content: content, credits: credits, now: time.Now}
}

func (s *StatsService) UserStats(ctx context.Context) (*UserStats, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var stats UserStats
	err := s.db.WithContext(ctx).
		Table("users").
		Select(`COUNT(*) AS total_users,
			COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS admins,
			COALESCE(SUM(CASE WHEN last_login_day = ? THEN 1 ELSE 0 END), 0) AS active_today,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS new_today,
			COALESCE(AVG(credits), 0) AS average_credits`,
			models.RoleAdmin, models.LoginDay(now), dayStart).
		Scan(&stats).Error
	if err != nil {
		return nil, storageError(err)
	}
	return &stats, nil
}

func (s *StatsService) FeedStats(ctx context.Context) (*FeedStats, error) {
	db := s.db.WithContext(ctx)
	stats := &FeedStats{BySource: make(map[models.Source]SourceStats, len(models.Sources))}
	for _, source := range models.Sources {
		stats.BySource[source] = SourceStats{}
	}

	type itemRow struct {
		Source string
		Count  int64
		Shares int64
		Shared int64
	}
	var items []itemRow
	if err := db.Table("content_items").
		Select("source, COUNT(*) AS count, COALESCE(SUM(share_count), 0) AS shares, COALESCE(SUM(CASE WHEN share_count > 0 THEN 1 ELSE 0 END), 0) AS shared").
		Group("source").
		Scan(&items).Error; err != nil {
		return nil, storageError(err)
	}
	for _, row := range items {
		src := stats.BySource[models.Source(row.Source)]
		src.Count = row.Count
		src.Shares = row.Shares
		stats.BySource[models.Source(row.Source)] = src
		stats.TotalItems += row.Count
		stats.TotalShares += row.Shares
		stats.ItemsShared += row.Shared
	}

	saves, err := countBySource(db, "content_saves")
	if err != nil {
		return nil, err
	}
	reports, err := countBySource(db, "content_reports")
	if err != nil {
		return nil, err
	}
	for source, n := range saves {
		src := stats.BySource[source]
		src.Saves = n
		stats.BySource[source] = src
		stats.TotalSaves += n
	}
	for source, n := range reports {
		src := stats.BySource[source]
		src.Reports = n
		stats.BySource[source] = src
	}

	if err := db.Table("content_saves").
		Select("COUNT(DISTINCT content_item_id)").
		Scan(&stats.ItemsSaved).Error; err != nil {
		return nil, storageError(err)
	}
	if err := db.Table("content_reports").
		Select("COUNT(DISTINCT content_item_id)").
		Scan(&stats.ReportedItems).Error; err != nil {
		return nil, storageError(err)
	}
	return stats, nil
}

func countBySource(db *gorm.DB, table string) (map[models.Source]int64, error) {
	type countRow struct {
		Source string
		Count  int64
	}
	var rows []countRow
	if err := db.Table(table).
		Select("content_items.source AS source, COUNT(*) AS count").
		Joins("JOIN content_items ON content_items.id = " + table + ".content_item_id").
		Group("content_items.source").
		Scan(&rows).Error; err != nil {
		return nil, storageError(err)
	}
	out := make(map[models.Source]int64, len(rows))
	for _, row := range rows {
		out[models.Source(row.Source)] = row.Count
	}
	return out, nil
}

func (s *StatsService) CreditStats(ctx context.Context) (*CreditStats, error) {
	db := s.db.WithContext(ctx)
	stats := &CreditStats{ByType: []TypeTotal{}}

	if err := db.Table("users").
		Select("COALESCE(SUM(credits), 0)").
		Scan(&stats.TotalCredits).Error; err != nil {
		return nil, storageError(err)
	}
	if err := db.Table("credit_transactions").
		Select("type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Group("type").
		Order("type").
		Scan(&stats.ByType).Error; err != nil {
		return nil, storageError(err)
	}

	recent, err := s.credits.Recent(ctx, recentTransactionLimit)
	if err != nil {
		return nil, err
	}
	stats.Recent = recent
	return stats, nil
}

// UserDetail loads a user with their saved items and latest ledger entries.
// Secondary lookups that fail are reported as warnings instead of errors.
func (s *StatsService) UserDetail(ctx context.Context, userID uint) (*UserDetail, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{
		User:               *user,
		SavedItems:         []models.ContentItem{},
		RecentTransactions: []models.CreditTransaction{},
	}

	saved, err := s.content.ListSavedBy(ctx, userID, 1, repository.MaxPageSize)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to load saved items for user", "target_user_id", userID, "error", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Saved items could not be loaded.")
	} else {
		detail.SavedItems = saved.Items
	}

	entries, _, err := s.credits.ListByUser(ctx, userID, recentTransactionLimit, 0)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to load transactions for user", "target_user_id", userID, "error", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Credit transactions could not be loaded.")
	} else {
		detail.RecentTransactions = entries
	}

	return detail, nil
}
