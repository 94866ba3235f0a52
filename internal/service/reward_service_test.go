package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"creditfeed/internal/models"
	"creditfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardService_DailyLoginGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "daily", models.RoleUser)
	morning := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)

	first, err := env.rewards.RecordLogin(ctx, user.ID, morning)
	require.NoError(t, err)
	assert.True(t, first.Awarded)
	assert.Equal(t, DailyLoginCredits, first.Amount)
	assert.Equal(t, models.DefaultCredits+DailyLoginCredits, first.Credits)

	second, err := env.rewards.RecordLogin(ctx, user.ID, morning.Add(6*time.Hour))
	require.NoError(t, err)
	assert.False(t, second.Awarded)
	assert.Equal(t, first.Credits, second.Credits)

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, stored.LastLoginAt.Equal(morning), "same-day login leaves last login untouched")

	next, err := env.rewards.RecordLogin(ctx, user.ID, morning.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, next.Awarded)
	assert.Equal(t, models.DefaultCredits+2*DailyLoginCredits, next.Credits)
	env.requireLedgerConsistent(t, user.ID)
}

func TestRewardService_DailyLoginAdminsNotExempt(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "boss", models.RoleAdmin)

	reward, err := env.rewards.RecordLogin(context.Background(), admin.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, reward.Awarded)
}

func TestRewardService_DailyLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.rewards.RecordLogin(context.Background(), 77, time.Now())
	assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)
}

func TestRewardService_ProfileCompletionSingleShot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "profiled", models.RoleUser)

	_, err := env.rewards.AwardProfileCompletion(ctx, user.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict), "incomplete profile: %v", err)

	_, err = env.rewards.UpdateProfile(ctx, UpdateProfileInput{
		UserID:    user.ID,
		Name:      "Grace Hopper",
		Bio:       "Compilers",
		AvatarURL: "https://example.com/grace.png",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCredits, env.balance(t, user.ID), "updating a profile does not award")

	res, err := env.rewards.AwardProfileCompletion(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCredits+ProfileCompletionCredits, res.Credits)

	_, err = env.rewards.AwardProfileCompletion(ctx, user.ID)
	require.True(t, models.IsCode(err, models.CodeConflict))
	assert.Contains(t, err.Error(), "already completed")

	_, err = env.rewards.AwardProfileCompletion(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	env.requireLedgerConsistent(t, user.ID)
}

func TestRewardService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "profiled", models.RoleUser)

	updated, err := env.rewards.UpdateProfile(ctx, UpdateProfileInput{
		UserID:    user.ID,
		Name:      " Ada ",
		Bio:       "Engines",
		AvatarURL: "https://example.com/ada.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Profile.Name)

	updated, err = env.rewards.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, Name: "Ada L", Bio: "Notes"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ada.png", updated.Profile.AvatarURL, "empty avatar keeps the current one")

	_, err = env.rewards.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, Name: "", Bio: "x"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestRewardService_AdjustCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.db, "admin", models.RoleAdmin)
	user := testutil.CreateUser(t, env.db, "target", models.RoleUser)

	res, err := env.rewards.AdjustCredits(ctx, AdjustCreditsInput{ActorID: admin.ID, TargetUserID: user.ID, Amount: -3})
	require.NoError(t, err)
	assert.Equal(t, AdjustCreditsResult{TargetUserID: user.ID, Username: "target", Credits: 7}, *res)

	history, err := env.ledger.History(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, "Admin adjustment: -3 credits", history.Transactions[0].Description)
	assert.Equal(t, models.TxAdminAdjustment, history.Transactions[0].Type)

	tests := []struct {
		name string
		in   AdjustCreditsInput
		code string
	}{
		{"non admin actor", AdjustCreditsInput{ActorID: user.ID, TargetUserID: admin.ID, Amount: 100}, models.CodeForbidden},
		{"zero amount", AdjustCreditsInput{ActorID: admin.ID, TargetUserID: user.ID}, models.CodeValidation},
		{"unknown target", AdjustCreditsInput{ActorID: admin.ID, TargetUserID: 999, Amount: 1}, models.CodeNotFound},
		{"description too long", AdjustCreditsInput{ActorID: admin.ID, TargetUserID: user.ID, Amount: 1,
			Description: strings.Repeat("x", models.MaxDescriptionLength+1)}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.rewards.AdjustCredits(ctx, tt.in)
			assert.True(t, models.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Equal(t, 7, env.balance(t, user.ID))
	assert.Equal(t, models.DefaultCredits, env.balance(t, admin.ID))
}
