package repository

import (
	"context"

	"creditfeed/internal/models"

	"gorm.io/gorm"
)

// CreditRepository defines persistence operations for the credit ledger.
// Entries are append-only.
type CreditRepository interface {
	Append(ctx context.Context, entry *models.CreditTransaction) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.CreditTransaction, int64, error)
	SumByUser(ctx context.Context, userID uint) (int64, error)
	Recent(ctx context.Context, limit int) ([]models.CreditTransaction, error)
	WithTx(tx *gorm.DB) CreditRepository
}

type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository returns a new CreditRepository implementation.
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) WithTx(tx *gorm.DB) CreditRepository {
	return &creditRepository{db: tx}
}

func (r *creditRepository) Append(ctx context.Context, entry *models.CreditTransaction) error {
	entry.ID = 0
	return storageError(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *creditRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.CreditTransaction, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, storageError(err)
	}

	entries := []models.CreditTransaction{}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, storageError(err)
	}
	return entries, total, nil
}

func (r *creditRepository) SumByUser(ctx context.Context, userID uint) (int64, error) {
	var sum int64
	if err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return 0, storageError(err)
	}
	return sum, nil
}

func (r *creditRepository) Recent(ctx context.Context, limit int) ([]models.CreditTransaction, error) {
	entries := []models.CreditTransaction{}
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, storageError(err)
	}
	return entries, nil
}
