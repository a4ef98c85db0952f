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

package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"rewards-ledger-bot/internal/api"
	"rewards-ledger-bot/internal/bonus"
	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/database"
	"rewards-ledger-bot/internal/deposit"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/rates"
	"rewards-ledger-bot/internal/withdrawal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Notifier receives workflow events for delivery to users and admins
type Notifier interface {
	withdrawal.Notifier
	deposit.Notifier
}

type Services struct {
	DbService   *database.Service
	Ledger      *api.LedgerService
	Assets      *models.AssetCatalogue
	Rates       *rates.Oracle
	CryptoPay   *cryptopay.Client
	Bonuses     *bonus.Engine
	Withdrawals *withdrawal.Workflow
	Deposits    *deposit.Workflow
}

// InitializeLogger builds the global logger. Output goes to stderr and, when
// cfg.File is set, to a size-rotated JSON file as well.
func InitializeLogger(cfg models.LogConfig) (*zap.Logger, func()) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			log.Printf("Unknown LOG_LEVEL %q, using info\n", cfg.Level)
		}
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zapConfig.EncoderConfig),
			zapcore.AddSync(rotator),
			level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
		if rotator != nil {
			_ = rotator.Close()
		}
	}

	return logger, cleanup
}

// InitializeServices opens the ledger and builds every workflow the bot and
// the background poller need. A Crypto Pay token is required.
func InitializeServices(ctx context.Context, cfg *models.Config, notifier Notifier) (*Services, error) {
	assets, err := LoadAssetConfig(cfg.AssetsFile)
	if err != nil {
		return nil, err
	}

	oracle, err := NewRateOracle(cfg.Rates)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Creating Crypto Pay client", zap.String("base_url", cfg.CryptoPay.BaseUrl))
	cryptoPay, err := cryptopay.NewClient(cfg.CryptoPay)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rules := bonus.RulesFromConfig(cfg.Rewards)
	services := &Services{
		DbService:   dbService,
		Ledger:      api.NewLedgerService(dbService),
		Assets:      assets,
		Rates:       oracle,
		CryptoPay:   cryptoPay,
		Bonuses:     bonus.NewEngine(dbService, rules),
		Withdrawals: withdrawal.NewWorkflow(dbService, oracle, assets, notifier, withdrawal.ConfigFromRewards(cfg.Rewards)),
		Deposits:    deposit.NewWorkflow(dbService, cryptoPay, oracle, assets, notifier),
	}

	zap.L().Info("Services initialized",
		zap.Strings("assets", assets.Symbols()),
		zap.String("default_asset", assets.Default().Symbol),
		zap.Bool("rates_api_key", cfg.Rates.ApiKey != ""))

	return services, nil
}

// InitializeDatabaseOnly initializes just the ledger store without the payment processor.
// Useful for operator tools like reconciliation and withdrawal review.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// NewRateOracle wires the CoinMarketCap source behind the TTL cache
func NewRateOracle(cfg models.RatesConfig) (*rates.Oracle, error) {
	if cfg.ApiKey == "" {
		zap.L().Warn("CMC_API_KEY not set, conversions degrade to 1:1 until a price is fetched")
	}
	source, err := rates.NewCoinMarketCap(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create rate source: %w", err)
	}
	return rates.NewOracle(source, rates.NewCache(cfg.CacheTTL, nil)), nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

// RequireEnv fails fast with the names of every missing variable
func RequireEnv(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
