// Package service holds the application's business rules on top of the repositories.
package service

import (
	"context"
	"errors"
	"time"

	"creditfeed/internal/models"
	"creditfeed/internal/repository"

	"gorm.io/gorm"
)

const defaultStorageTimeout = 5 * time.Second

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	return page, pageSize
}

// storageError keeps app errors as they are and reports anything else,
// including an expired deadline, as the datastore being unavailable.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewStorageError(err)
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// withTimeout bounds a storage operation; zero means no extra deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
