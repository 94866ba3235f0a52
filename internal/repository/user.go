package repository

import (
	"context"
	"errors"
	"time"

	"creditfeed/internal/cache"
	"creditfeed/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, int64, error)
	UpdateProfile(ctx context.Context, id uint, profile models.Profile) error
	SetRole(ctx context.Context, id uint, role models.Role) error
	// AddCredits applies amount to the stored balance and returns the new balance.
	AddCredits(ctx context.Context, id uint, amount int) (int, error)
	// MarkProfileCompleted flips profile_completed to true if it is false and
	// the stored profile is complete. Reports whether a row changed.
	MarkProfileCompleted(ctx context.Context, id uint) (bool, error)
	// MarkDailyLogin records a login on day unless one was already recorded for
	// that day. Reports whether a row changed.
	MarkDailyLogin(ctx context.Context, id uint, at time.Time, day string) (bool, error)
	WithTx(tx *gorm.DB) UserRepository
}

type userRepository struct {
	db   *gorm.DB
	inTx bool
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx, inTx: true}
}

// GetByID reads through the cache, except inside a transaction where it
// always reads the row.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if r.inTx {
		if err := r.first(ctx, &user, id); err != nil {
			return nil, err
		}
		return &user, nil
	}
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.first(ctx, &user, id)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) first(ctx context.Context, user *models.User, id uint) error {
	if err := r.db.WithContext(ctx).First(user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("User", id)
		}
		return storageError(err)
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return storageError(err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, storageError(err)
	}
	var users []models.User
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, 0, storageError(err)
	}
	return users, total, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, profile models.Profile) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"profile_name":       profile.Name,
		"profile_bio":        profile.Bio,
		"profile_avatar_url": profile.AvatarURL,
	})
	if res.Error != nil {
		return storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// SetRole changes a user's role and drops the cached copy so permission
// checks see the new role at once.
func (r *userRepository) SetRole(ctx context.Context, id uint, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) AddCredits(ctx context.Context, id uint, amount int) (int, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return 0, storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, models.NewNotFoundError("User", id)
	}

	var balance int
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Select("credits").
		Scan(&balance).Error; err != nil {
		return 0, storageError(err)
	}
	return balance, nil
}

func (r *userRepository) MarkProfileCompleted(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND profile_completed = ?", id, false).
		Where("profile_name <> '' AND profile_bio <> '' AND profile_avatar_url <> ''").
		UpdateColumn("profile_completed", true)
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) MarkDailyLogin(ctx context.Context, id uint, at time.Time, day string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (last_login_day IS NULL OR last_login_day <> ?)", id, day).
		UpdateColumns(map[string]any{
			"last_login_at":  at,
			"last_login_day": day,
		})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
