package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_PATH", "ADMIN_IDS", "BONUS_TIMEZONE", "MAX_FREE_BONUS_TOTAL", "INVOICE_BATCH_SIZE", "HTTP_LISTEN_ADDR", "BOT_USERNAME"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rewards.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Empty(t, cfg.Bot.AdminIds)
	assert.Equal(t, 60, cfg.Bot.UpdateTimeout)
	assert.Equal(t, 50, cfg.Listener.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.Listener.CleanupInterval)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 3, cfg.Rewards.MinReferralsForWithdrawal)
	assert.True(t, cfg.Rewards.MaxFreeBonusTotal.Equal(decimal.NewFromInt(25)))
	assert.True(t, cfg.Rewards.MinRequiredDeposit.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, time.UTC, cfg.Rewards.BonusLocation)
	assert.Equal(t, "assets.yaml", cfg.AssetsFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADMIN_IDS", " 42, 7 ,")
	t.Setenv("BOT_USERNAME", "@rewards_bot")
	t.Setenv("MAX_FREE_BONUS_TOTAL", "12.5")
	t.Setenv("INVOICE_POLLING_INTERVAL", "5s")
	t.Setenv("CRYPTO_PAY_WEBHOOK_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{42, 7}, cfg.Bot.AdminIds)
	assert.Equal(t, "rewards_bot", cfg.Bot.Username)
	assert.Equal(t, "12.5", cfg.Rewards.MaxFreeBonusTotal.String())
	assert.Equal(t, 5*time.Second, cfg.Listener.PollingInterval)
	assert.True(t, cfg.CryptoPay.WebhookEnabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"ADMIN_IDS":            "12,abc",
		"BONUS_TIMEZONE":       "Mars/Olympus",
		"MAX_FREE_BONUS_TOTAL": "lots",
		"BONUS_COOLDOWN":       "a day",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}
