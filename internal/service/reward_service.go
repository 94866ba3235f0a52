package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"creditfeed/internal/cache"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/policy"
	"creditfeed/internal/repository"
	"creditfeed/internal/validation"

	"gorm.io/gorm"
)

const (
	DailyLoginCredits        = 5
	ProfileCompletionCredits = 10
)

// LoginReward is the outcome of the daily login check.
type LoginReward struct {
	Awarded bool `json:"awarded"`
	Amount  int  `json:"amount"`
	Credits int  `json:"credits"`
}

type AdjustCreditsInput struct {
	ActorID      uint
	TargetUserID uint
	Amount       int
	Description  string
}

type AdjustCreditsResult struct {
	TargetUserID uint   `json:"targetUserId"`
	Username     string `json:"username"`
	Credits      int    `json:"credits"`
}

type UpdateProfileInput struct {
	UserID    uint
	Name      string
	Bio       string
	AvatarURL string
}

// RewardService grants login, profile and admin credits. Every balance
// change goes through the ledger in the same transaction as its trigger.
type RewardService struct {
	db      *gorm.DB
	users   repository.UserRepository
	ledger  *CreditLedger
	timeout time.Duration
}

func NewRewardService(db *gorm.DB, users repository.UserRepository, ledger *CreditLedger, timeout time.Duration) *RewardService {
	return &RewardService{db: db, users: users, ledger: ledger, timeout: timeout}
}

// RecordLogin awards the daily login bonus the first time a user logs in on
// a server-local calendar day. Admins are not exempt.
func (s *RewardService) RecordLogin(ctx context.Context, userID uint, now time.Time) (*LoginReward, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var reward *LoginReward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		first, err := users.MarkDailyLogin(ctx, userID, now, models.LoginDay(now))
		if err != nil {
			return err
		}
		if !first {
			reward = &LoginReward{Credits: user.Credits}
			return nil
		}
		award, err := s.ledger.WithTx(tx).Award(ctx, AwardInput{
			UserID:      userID,
			Amount:      DailyLoginCredits,
			Type:        models.TxDailyLogin,
			Description: "Daily login bonus",
		})
		if err != nil {
			return err
		}
		reward = &LoginReward{Awarded: true, Amount: DailyLoginCredits, Credits: award.Balance}
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	cache.InvalidateUser(ctx, userID)
	return reward, nil
}

// AwardProfileCompletion grants the one-time profile bonus once name, bio
// and avatar are all set.
func (s *RewardService) AwardProfileCompletion(ctx context.Context, userID uint) (*InteractionResult, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var result *InteractionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		if _, err := users.GetByID(ctx, userID); err != nil {
			return err
		}
		marked, err := users.MarkProfileCompleted(ctx, userID)
		if err != nil {
			return err
		}
		if !marked {
			user, err := users.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			if user.ProfileCompleted {
				return models.NewConflictError("Profile already completed")
			}
			return models.NewConflictError("Profile is incomplete: name, bio and avatar are required")
		}
		award, err := s.ledger.WithTx(tx).Award(ctx, AwardInput{
			UserID:      userID,
			Amount:      ProfileCompletionCredits,
			Type:        models.TxProfileCompletion,
			Description: "Profile completion bonus",
		})
		if err != nil {
			return err
		}
		result = &InteractionResult{Credits: award.Balance}
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	cache.InvalidateUser(ctx, userID)
	return result, nil
}

// AdjustCredits applies an admin adjustment, positive or negative.
func (s *RewardService) AdjustCredits(ctx context.Context, in AdjustCreditsInput) (*AdjustCreditsResult, error) {
	if in.Amount == 0 {
		return nil, models.NewValidationError("Amount must be non-zero")
	}
	actor, err := s.users.GetByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(policy.ActorFor(actor), policy.ActionAdjustCredits); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = fmt.Sprintf("Admin adjustment: %+d credits", in.Amount)
	}
	if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
		return nil, models.NewValidationError(
			fmt.Sprintf("Description must be at most %d characters", models.MaxDescriptionLength))
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var result *AdjustCreditsResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.users.WithTx(tx).GetByID(ctx, in.TargetUserID)
		if err != nil {
			return err
		}
		award, err := s.ledger.WithTx(tx).Award(ctx, AwardInput{
			UserID:      in.TargetUserID,
			Amount:      in.Amount,
			Type:        models.TxAdminAdjustment,
			Description: description,
		})
		if err != nil {
			return err
		}
		result = &AdjustCreditsResult{TargetUserID: target.ID, Username: target.Username, Credits: award.Balance}
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	cache.InvalidateUser(ctx, in.TargetUserID)

	middleware.Logger.InfoContext(ctx, "Admin credit adjustment",
		"admin_id", in.ActorID,
		"target_user_id", in.TargetUserID,
		"amount", in.Amount,
	)
	return result, nil
}

// UpdateProfile stores name, bio and avatar. An empty avatar keeps the
// current one. Completing the profile does not award by itself.
func (s *RewardService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := validation.ValidateProfile(in.Name, in.Bio, in.AvatarURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	profile := models.Profile{
		Name:      strings.TrimSpace(in.Name),
		Bio:       strings.TrimSpace(in.Bio),
		AvatarURL: strings.TrimSpace(in.AvatarURL),
	}
	if profile.AvatarURL == "" {
		profile.AvatarURL = user.Profile.AvatarURL
	}
	if err := s.users.UpdateProfile(ctx, in.UserID, profile); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, in.UserID)
}
