package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rewards-ledger-bot/internal/database"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*LedgerService, *database.Service) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return NewLedgerService(db), db
}

func TestRegisterUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterUser(ctx, 10, " alice ", nil)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "alice", first.User.Username)
	assert.Equal(t, "Bronze", first.User.Tier)

	referrer := int64(10)
	second, err := svc.RegisterUser(ctx, 11, "bob", &referrer)
	require.NoError(t, err)
	require.NotNil(t, second.ReferredBy)
	assert.Equal(t, int64(10), *second.ReferredBy)

	// unknown referrer is dropped
	ghost := int64(999)
	third, err := svc.RegisterUser(ctx, 12, "carol", &ghost)
	require.NoError(t, err)
	assert.Nil(t, third.ReferredBy)

	// returning user keeps the original referrer
	again, err := svc.RegisterUser(ctx, 11, "bob", nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	require.NotNil(t, again.ReferredBy)

	_, err = svc.RegisterUser(ctx, 0, "nobody", nil)
	assert.Error(t, err)
}

func TestGetAccountAndReferrals(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, 1, "owner", nil)
	require.NoError(t, err)
	referrer := int64(1)
	for _, id := range []int64{2, 3} {
		_, err := svc.RegisterUser(ctx, id, "friend", &referrer)
		require.NoError(t, err)
	}

	_, err = db.Credit(ctx, store.CreditParams{UserId: 1, Amount: decimal.NewFromInt(160), Kind: models.CreditDeposit})
	require.NoError(t, err)
	_, err = db.Credit(ctx, store.CreditParams{UserId: 1, Amount: decimal.NewFromInt(4), Kind: models.CreditBonus})
	require.NoError(t, err)

	account, err := svc.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Gold", account.User.Tier)
	assert.True(t, account.Available.Equal(decimal.NewFromInt(164)))
	assert.Equal(t, 2, account.ReferralCount)
	assert.True(t, account.ReferralRate.Equal(decimal.NewFromInt(25)))

	referrals, err := svc.GetReferrals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, referrals.Referrals, 2)
	assert.Equal(t, "Gold", referrals.Tier)

	_, err = svc.GetAccount(ctx, 42)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestHistoryAndReconcile(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, 1, "owner", nil)
	require.NoError(t, err)
	_, err = db.Credit(ctx, store.CreditParams{UserId: 1, Amount: decimal.NewFromInt(30), Kind: models.CreditDeposit})
	require.NoError(t, err)
	_, err = db.ReserveForWithdrawal(ctx, 1, decimal.NewFromInt(10))
	require.NoError(t, err)

	history, err := svc.GetTransactionHistory(ctx, 1, 0, -5)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	users, mismatches, err := svc.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Empty(t, mismatches)

	require.NoError(t, svc.HealthCheck(ctx))
}
