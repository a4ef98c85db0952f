/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rewards-ledger-bot/internal/models"
)

func Load() (*models.Config, error) {
	durations := map[string]*time.Duration{}
	durationDefaults := []struct {
		key      string
		fallback time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second},
		{"DB_PING_TIMEOUT", 5 * time.Second},
		{"DB_BUSY_TIMEOUT", 5 * time.Second},
		{"CRYPTO_PAY_TIMEOUT", 10 * time.Second},
		{"RATE_CACHE_TTL", 60 * time.Second},
		{"RATE_REQUEST_TIMEOUT", 10 * time.Second},
		{"INVOICE_POLLING_INTERVAL", 30 * time.Second},
		{"INVOICE_CLEANUP_INTERVAL", 15 * time.Minute},
		{"HTTP_SHUTDOWN_TIMEOUT", 30 * time.Second},
		{"BONUS_COOLDOWN", 24 * time.Hour},
	}
	for _, d := range durationDefaults {
		value, err := getEnvDuration(d.key, d.fallback)
		if err != nil {
			return nil, err
		}
		durations[d.key] = &value
	}

	maxFreeBonus, err := getEnvDecimal("MAX_FREE_BONUS_TOTAL", decimal.NewFromInt(25))
	if err != nil {
		return nil, err
	}

	minRequiredDeposit, err := getEnvDecimal("MIN_REQUIRED_DEPOSIT", decimal.NewFromInt(50))
	if err != nil {
		return nil, err
	}

	adminIds, err := parseAdminIds(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(getEnvString("BONUS_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid BONUS_TIMEZONE: %w", err)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "rewards.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: *durations["DB_CONN_MAX_LIFETIME"],
			ConnMaxIdleTime: *durations["DB_CONN_MAX_IDLE_TIME"],
			PingTimeout:     *durations["DB_PING_TIMEOUT"],
			BusyTimeout:     *durations["DB_BUSY_TIMEOUT"],
		},
		Bot: models.BotConfig{
			Token:         os.Getenv("TELEGRAM_BOT_TOKEN"),
			Username:      strings.TrimPrefix(os.Getenv("BOT_USERNAME"), "@"),
			AdminIds:      adminIds,
			UpdateTimeout: getEnvInt("BOT_UPDATE_TIMEOUT", 60),
			Debug:         getEnvBool("BOT_DEBUG", false),
		},
		CryptoPay: models.CryptoPayConfig{
			ApiToken:       os.Getenv("CRYPTO_PAY_API_TOKEN"),
			BaseUrl:        getEnvString("CRYPTO_PAY_API_BASE", "https://testnet-pay.crypt.bot/api"),
			Timeout:        *durations["CRYPTO_PAY_TIMEOUT"],
			PaidButtonUrl:  os.Getenv("CRYPTO_PAY_PAID_BTN_URL"),
			WebhookEnabled: getEnvBool("CRYPTO_PAY_WEBHOOK_ENABLED", false),
		},
		Rates: models.RatesConfig{
			ApiKey:            os.Getenv("CMC_API_KEY"),
			ApiUrl:            getEnvString("CMC_API_URL", "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"),
			CacheTTL:          *durations["RATE_CACHE_TTL"],
			RequestTimeout:    *durations["RATE_REQUEST_TIMEOUT"],
			RequestsPerMinute: getEnvInt("RATE_REQUESTS_PER_MINUTE", 30),
		},
		Listener: models.ListenerConfig{
			PollingInterval: *durations["INVOICE_POLLING_INTERVAL"],
			CleanupInterval: *durations["INVOICE_CLEANUP_INTERVAL"],
			BatchSize:       getEnvInt("INVOICE_BATCH_SIZE", 50),
		},
		Server: models.ServerConfig{
			ListenAddr:      getEnvString("HTTP_LISTEN_ADDR", ":8080"),
			ShutdownTimeout: *durations["HTTP_SHUTDOWN_TIMEOUT"],
		},
		Rewards: models.RewardsConfig{
			MinReferralsForWithdrawal: getEnvInt("MIN_REFERRALS_FOR_WITHDRAWAL", 3),
			MaxFreeBonusTotal:         maxFreeBonus,
			MinRequiredDeposit:        minRequiredDeposit,
			BonusCooldown:             *durations["BONUS_COOLDOWN"],
			BonusLocation:             location,
			MinWalletAddressLength:    getEnvInt("MIN_WALLET_ADDRESS_LENGTH", 10),
		},
		Log: models.LogConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		AssetsFile: getEnvString("ASSETS_FILE", "assets.yaml"),
	}, nil
}

// parseAdminIds reads a comma separated list of Telegram user ids
func parseAdminIds(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid admin id in ADMIN_IDS: %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
