package service

import (
	"context"
	"testing"
	"time"

	"creditfeed/internal/models"
	"creditfeed/internal/repository"
	"creditfeed/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv wires every service over one in-memory database.
type testEnv struct {
	db           *gorm.DB
	users        repository.UserRepository
	content      repository.ContentRepository
	credits      repository.CreditRepository
	ledger       *CreditLedger
	interactions *InteractionService
	rewards      *RewardService
	stats        *StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	content := repository.NewContentRepository(db)
	credits := repository.NewCreditRepository(db)
	ledger := NewCreditLedger(db, users, credits)
	return &testEnv{
		db:           db,
		users:        users,
		content:      content,
		credits:      credits,
		ledger:       ledger,
		interactions: NewInteractionService(db, content, ledger, 5*time.Second),
		rewards:      NewRewardService(db, users, ledger, 5*time.Second),
		stats:        NewStatsService(db, users, content, credits),
	}
}

func (e *testEnv) item(t *testing.T, originalID string) *models.ContentItem {
	t.Helper()
	return testutil.CreateItem(t, e.db, models.ContentItem{
		OriginalID:  originalID,
		URL:         "https://example.com/" + originalID,
		PublishedAt: time.Now(),
	})
}

func (e *testEnv) balance(t *testing.T, userID uint) int {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.First(&user, userID).Error)
	return user.Credits
}

// requireLedgerConsistent checks balance == starting credits + sum(ledger).
func (e *testEnv) requireLedgerConsistent(t *testing.T, userID uint) {
	t.Helper()
	report, err := e.ledger.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.Zero(t, report.Drift, "balance %d, ledger sum %d", report.Balance, report.LedgerSum)
}
