package service

import (
	"context"
	"testing"

	"creditfeed/internal/models"
	"creditfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreditLedger_Award(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "ledger_user", models.RoleUser)

	res, err := env.ledger.Award(ctx, AwardInput{
		UserID:      user.ID,
		Amount:      7,
		Type:        models.TxAdminAdjustment,
		Description: "Admin adjustment: +7 credits",
	})
	require.NoError(t, err)
	assert.Equal(t, 17, res.Balance)
	assert.NotZero(t, res.Transaction.ID)
	assert.Equal(t, 7, res.Transaction.Amount)

	res, err = env.ledger.Award(ctx, AwardInput{
		UserID:      user.ID,
		Amount:      -4,
		Type:        models.TxAdminAdjustment,
		Description: "Admin adjustment: -4 credits",
	})
	require.NoError(t, err)
	assert.Equal(t, 13, res.Balance)
	assert.Equal(t, 13, env.balance(t, user.ID))
	env.requireLedgerConsistent(t, user.ID)
}

func TestCreditLedger_AwardRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ledger_user", models.RoleUser)

	tests := []struct {
		name string
		in   AwardInput
	}{
		{"unknown type", AwardInput{UserID: user.ID, Amount: 1, Type: "bonus", Description: "x"}},
		{"blank description", AwardInput{UserID: user.ID, Amount: 1, Type: models.TxDailyLogin, Description: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.Award(context.Background(), tt.in)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, models.DefaultCredits, env.balance(t, user.ID))
}

func TestCreditLedger_AwardUnknownUserWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Award(context.Background(), AwardInput{
		UserID:      999,
		Amount:      5,
		Type:        models.TxDailyLogin,
		Description: "Daily login bonus",
	})
	assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)

	var count int64
	require.NoError(t, env.db.Model(&models.CreditTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreditLedger_WithTxRollsBackWithCaller(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ledger_user", models.RoleUser)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.ledger.WithTx(tx).Award(context.Background(), AwardInput{
			UserID:      user.ID,
			Amount:      3,
			Type:        models.TxContentInteraction,
			Description: "Shared content item #1",
		}); err != nil {
			return err
		}
		return models.NewConflictError("caller failed")
	})
	require.Error(t, err)

	assert.Equal(t, models.DefaultCredits, env.balance(t, user.ID))
	env.requireLedgerConsistent(t, user.ID)
}

func TestCreditLedger_History(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "ledger_user", models.RoleUser)

	for i := 0; i < 3; i++ {
		_, err := env.ledger.Award(ctx, AwardInput{UserID: user.ID, Amount: 1, Type: models.TxContentInteraction, Description: "Reported content item"})
		require.NoError(t, err)
	}

	history, err := env.ledger.History(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), history.Total)
	assert.Len(t, history.Transactions, 2)
	assert.Greater(t, history.Transactions[0].ID, history.Transactions[1].ID, "newest first")

	_, err = env.ledger.History(ctx, 404, 1, 10)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCreditLedger_ReconcileReportsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "ledger_user", models.RoleUser)

	_, err := env.ledger.Award(ctx, AwardInput{UserID: user.ID, Amount: 5, Type: models.TxDailyLogin, Description: "Daily login bonus"})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", user.ID).
		UpdateColumn("credits", gorm.Expr("credits + ?", 2)).Error)

	report, err := env.ledger.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, report.Balance)
	assert.Equal(t, int64(5), report.LedgerSum)
	assert.Equal(t, int64(15), report.Expected)
	assert.Equal(t, int64(2), report.Drift)
}
