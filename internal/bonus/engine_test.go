package bonus

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

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestEngine(t *testing.T, draw float64) (*Engine, *database.Service, *clock) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "bonus.db"),
		MaxOpenConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	c := &clock{now: time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)}
	engine := NewEngine(db, DefaultRules(), WithClock(c.Now), WithDraw(func() float64 { return draw }))
	return engine, db, c
}

func registerUser(t *testing.T, db *database.Service, userId int64) {
	t.Helper()
	_, _, err := db.CreateUser(context.Background(), store.CreateUserParams{UserId: userId, Username: "tester"})
	require.NoError(t, err)
}

func TestClaim_FirstClaimAndCooldown(t *testing.T) {
	engine, db, c := newTestEngine(t, 0)
	ctx := context.Background()
	registerUser(t, db, 1)

	result, err := engine.Claim(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreakDays)
	// Bronze minimum with the first streak day boost
	assert.Equal(t, "0.515", result.Amount.String())

	c.now = c.now.Add(23 * time.Hour)
	_, err = engine.Claim(ctx, 1)
	assert.ErrorIs(t, err, ErrCooldownActive)

	claim, err := db.GetDailyClaim(ctx, 1)
	require.NoError(t, err)
	assert.True(t, claim.TotalClaimed.Equal(result.Amount), "refused claim must not change total")
}

func TestClaim_StreakAcrossDays(t *testing.T) {
	engine, db, c := newTestEngine(t, 0.5)
	ctx := context.Background()
	registerUser(t, db, 1)

	for day := 1; day <= 3; day++ {
		result, err := engine.Claim(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, day, result.StreakDays)
		c.now = c.now.Add(24 * time.Hour)
	}

	// skip a day
	c.now = c.now.Add(24 * time.Hour)
	result, err := engine.Claim(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreakDays)
}

func TestClaim_DepositRequiredAfterFreeCap(t *testing.T) {
	engine, db, c := newTestEngine(t, 0.99)
	ctx := context.Background()
	registerUser(t, db, 1)

	// A high draw with any streak boost clamps every Bronze claim to 1.0
	for i := 0; i < 25; i++ {
		_, err := engine.Claim(ctx, 1)
		require.NoError(t, err)
		c.now = c.now.Add(24 * time.Hour)
	}

	claim, err := db.GetDailyClaim(ctx, 1)
	require.NoError(t, err)
	require.True(t, claim.TotalClaimed.Equal(decimal.NewFromInt(25)), "got %s", claim.TotalClaimed)

	_, err = engine.Claim(ctx, 1)
	assert.ErrorIs(t, err, ErrDepositRequired)

	status, err := engine.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.DepositRequired)
	assert.False(t, status.CanClaim)

	_, err = db.Credit(ctx, store.CreditParams{UserId: 1, Amount: decimal.NewFromInt(50), Kind: models.CreditDeposit})
	require.NoError(t, err)

	status, err = engine.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.CanClaim)
	assert.Equal(t, "Silver", status.Tier)

	claim, err = db.GetDailyClaim(ctx, 1)
	require.NoError(t, err)
	assert.False(t, claim.EligibleForFreeBonus, "status check must revoke the free bonus once the deposit is met")

	result, err := engine.Claim(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.Amount.GreaterThanOrEqual(decimal.RequireFromString("1.5")))
}

func TestStatus_UnknownUser(t *testing.T) {
	engine, _, _ := newTestEngine(t, 0)

	_, err := engine.Status(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	_, err = engine.Claim(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
