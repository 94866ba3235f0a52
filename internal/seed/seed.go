package seed

import (
	"context"
	"fmt"

	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/repository"
	"creditfeed/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers        int
	ItemsPerSource  int
	Interactions    int
	ShouldClean     bool
	SkipBcrypt      bool
	RandSeed        int64
	CompleteProfile bool
}

// Summary counts what a seed run produced.
type Summary struct {
	Users   int `json:"users"`
	Items   int `json:"items"`
	Saves   int `json:"saves"`
	Shares  int `json:"shares"`
	Reports int `json:"reports"`
}

// Seed populates db with users, content and interactions. Interactions go
// through the interaction service so every credit lands in the ledger.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	middleware.Logger.Info("Starting database seeding",
		"users", opts.NumUsers,
		"items_per_source", opts.ItemsPerSource,
		"interactions", opts.Interactions,
	)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	factory := NewFactory(db, opts)
	users := repository.NewUserRepository(db)
	content := repository.NewContentRepository(db)
	credits := repository.NewCreditRepository(db)
	ledger := service.NewCreditLedger(db, users, credits)
	interactions := service.NewInteractionService(db, content, ledger, 0)
	rewards := service.NewRewardService(db, users, ledger, 0)

	summary := &Summary{}
	seeded := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		seeded = append(seeded, user)
		if opts.CompleteProfile && user.Profile.IsComplete() {
			if _, err := rewards.AwardProfileCompletion(ctx, user.ID); err != nil {
				return nil, fmt.Errorf("failed to award profile completion: %w", err)
			}
		}
	}
	summary.Users = len(seeded)

	var batch []models.ContentItem
	for _, source := range models.Sources {
		for n := 0; n < opts.ItemsPerSource; n++ {
			batch = append(batch, factory.BuildItem(source, n))
		}
	}
	res, err := content.UpsertBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}
	summary.Items = res.Matched + res.Created

	if len(seeded) == 0 || summary.Items == 0 || opts.Interactions <= 0 {
		return summary, nil
	}

	var itemIDs []uint
	if err := db.WithContext(ctx).Model(&models.ContentItem{}).Order("id").Pluck("id", &itemIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}

	for i := 0; i < opts.Interactions; i++ {
		user := seeded[factory.Intn(len(seeded))]
		itemID := itemIDs[factory.Intn(len(itemIDs))]

		var err error
		switch factory.Intn(10) {
		case 0:
			_, err = interactions.Report(ctx, user.ID, itemID, factory.ReportReason())
			if err == nil {
				summary.Reports++
			}
		case 1, 2, 3:
			_, err = interactions.Share(ctx, user.ID, itemID)
			if err == nil {
				summary.Shares++
			}
		default:
			_, err = interactions.Save(ctx, user.ID, itemID)
			if err == nil {
				summary.Saves++
			}
		}
		// Repeated picks of the same pair are expected.
		if err != nil && !models.IsCode(err, models.CodeConflict) {
			return nil, fmt.Errorf("failed to seed interaction: %w", err)
		}
	}

	middleware.Logger.Info("Database seeding complete",
		"users", summary.Users,
		"items", summary.Items,
		"saves", summary.Saves,
		"shares", summary.Shares,
		"reports", summary.Reports,
	)
	return summary, nil
}

// clearData removes every seeded table in dependency order.
func clearData(db *gorm.DB) error {
	tables := []string{"content_reports", "content_saves", "credit_transactions", "content_items", "users"}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
