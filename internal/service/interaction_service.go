package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"creditfeed/internal/cache"
	"creditfeed/internal/models"
	"creditfeed/internal/observability"
	"creditfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Credits granted per interaction.
const (
	SaveCredits   = 2
	ReportCredits = 1
	ShareCredits  = 3
)

const MaxReportReasonLength = 500

// InteractionResult is returned by crediting interactions.
type InteractionResult struct {
	Credits  int    `json:"credits"`
	ShareURL string `json:"shareUrl,omitempty"`
}

// InteractionService applies user interactions to content items. Each action
// and its credit award commit or roll back together.
type InteractionService struct {
	db      *gorm.DB
	content repository.ContentRepository
	ledger  *CreditLedger
	timeout time.Duration
}

func NewInteractionService(db *gorm.DB, content repository.ContentRepository, ledger *CreditLedger, timeout time.Duration) *InteractionService {
	return &InteractionService{db: db, content: content, ledger: ledger, timeout: timeout}
}

type interactionFunc func(ctx context.Context, content repository.ContentRepository, ledger *CreditLedger) (*InteractionResult, error)

func (s *InteractionService) run(ctx context.Context, action string, userID, itemID uint, fn interactionFunc) (*InteractionResult, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "interaction", action,
		attribute.Int("user.id", int(userID)),
		attribute.Int("content.id", int(itemID)),
	)

	var result *InteractionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = fn(ctx, s.content.WithTx(tx), s.ledger.WithTx(tx))
		return txErr
	})
	err = storageError(err)
	observability.EndSpan(span, err)

	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(models.ErrorCode(err))
	}
	observability.Interactions.WithLabelValues(action, outcome).Inc()
	if err != nil {
		return nil, err
	}

	cache.InvalidateUser(ctx, userID)
	cache.InvalidateFeed(ctx)
	return result, nil
}

func requireItem(ctx context.Context, content repository.ContentRepository, itemID uint) error {
	ok, err := content.Exists(ctx, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Content item", itemID)
	}
	return nil
}

// Save adds the item to the user's saved set and awards SaveCredits.
func (s *InteractionService) Save(ctx context.Context, userID, itemID uint) (*InteractionResult, error) {
	return s.run(ctx, "save", userID, itemID, func(ctx context.Context, content repository.ContentRepository, ledger *CreditLedger) (*InteractionResult, error) {
		if err := requireItem(ctx, content, itemID); err != nil {
			return nil, err
		}
		added, err := content.AddSave(ctx, userID, itemID)
		if err != nil {
			return nil, err
		}
		if !added {
			return nil, models.NewConflictError("Post already saved")
		}
		award, err := ledger.Award(ctx, AwardInput{
			UserID:      userID,
			Amount:      SaveCredits,
			Type:        models.TxContentInteraction,
			Description: fmt.Sprintf("Saved content item #%d", itemID),
		})
		if err != nil {
			return nil, err
		}
		return &InteractionResult{Credits: award.Balance}, nil
	})
}

// Unsave removes the item from the user's saved set. Credits are kept.
func (s *InteractionService) Unsave(ctx context.Context, userID, itemID uint) error {
	_, err := s.run(ctx, "unsave", userID, itemID, func(ctx context.Context, content repository.ContentRepository, _ *CreditLedger) (*InteractionResult, error) {
		if err := requireItem(ctx, content, itemID); err != nil {
			return nil, err
		}
		removed, err := content.RemoveSave(ctx, userID, itemID)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, models.NewConflictError("Post not saved by user")
		}
		return &InteractionResult{}, nil
	})
	return err
}

// Report flags the item with a reason and awards ReportCredits. A user can
// report an item once; only an admin clear resets it.
func (s *InteractionService) Report(ctx context.Context, userID, itemID uint, reason string) (*InteractionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Reason for report is required")
	}
	if utf8.RuneCountInString(reason) > MaxReportReasonLength {
		return nil, models.NewValidationError(fmt.Sprintf("Reason must be at most %d characters", MaxReportReasonLength))
	}

	return s.run(ctx, "report", userID, itemID, func(ctx context.Context, content repository.ContentRepository, ledger *CreditLedger) (*InteractionResult, error) {
		if err := requireItem(ctx, content, itemID); err != nil {
			return nil, err
		}
		added, err := content.AddReport(ctx, userID, itemID, reason)
		if err != nil {
			return nil, err
		}
		if !added {
			return nil, models.NewConflictError("Post already reported by you")
		}
		award, err := ledger.Award(ctx, AwardInput{
			UserID:      userID,
			Amount:      ReportCredits,
			Type:        models.TxContentInteraction,
			Description: fmt.Sprintf("Reported content item #%d", itemID),
		})
		if err != nil {
			return nil, err
		}
		return &InteractionResult{Credits: award.Balance}, nil
	})
}

// Share counts a share and awards ShareCredits on every call.
func (s *InteractionService) Share(ctx context.Context, userID, itemID uint) (*InteractionResult, error) {
	return s.run(ctx, "share", userID, itemID, func(ctx context.Context, content repository.ContentRepository, ledger *CreditLedger) (*InteractionResult, error) {
		item, err := content.GetByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		ok, err := content.IncrementShare(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewNotFoundError("Content item", itemID)
		}
		award, err := ledger.Award(ctx, AwardInput{
			UserID:      userID,
			Amount:      ShareCredits,
			Type:        models.TxContentInteraction,
			Description: fmt.Sprintf("Shared content item #%d", itemID),
		})
		if err != nil {
			return nil, err
		}
		return &InteractionResult{Credits: award.Balance, ShareURL: item.URL}, nil
	})
}
