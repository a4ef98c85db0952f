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

package main

import (
	"context"
	"fmt"
	"time"

	"rewards-ledger-bot/internal/common"
	"rewards-ledger-bot/internal/config"
	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/rates"

	"go.uber.org/zap"
)

type checkResult struct {
	name   string
	detail string
	err    error
}

func checkDatabase(ctx context.Context, cfg *models.Config) checkResult {
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		return checkResult{name: "database", err: err}
	}
	defer dbService.Close()

	users, err := dbService.GetUsers(ctx)
	if err != nil {
		return checkResult{name: "database", err: err}
	}
	return checkResult{name: "database", detail: fmt.Sprintf("%s ready, %d users", cfg.Database.Path, len(users))}
}

func checkCryptoPay(ctx context.Context, cfg models.CryptoPayConfig) checkResult {
	client, err := cryptopay.NewClient(cfg)
	if err != nil {
		return checkResult{name: "crypto pay", err: err}
	}
	app, err := client.GetMe(ctx)
	if err != nil {
		return checkResult{name: "crypto pay", err: err}
	}
	return checkResult{name: "crypto pay", detail: fmt.Sprintf("app %q (%d) at %s", app.Name, app.AppId, cfg.BaseUrl)}
}

func checkRates(ctx context.Context, oracle *rates.Oracle, assets *models.AssetCatalogue) []checkResult {
	var results []checkResult
	for _, asset := range assets.All() {
		price, err := oracle.QuoteUsd(ctx, asset.Symbol)
		if err != nil {
			results = append(results, checkResult{name: "rate " + asset.Symbol, err: err})
			continue
		}
		results = append(results, checkResult{
			name:   "rate " + asset.Symbol,
			detail: fmt.Sprintf("1 %s = %s (min deposit %s)", asset.Symbol, common.FormatUsd(price), asset.MinDeposit.String()),
		})
	}
	return results
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	logger.Info("Checking bot environment")

	assets, err := common.LoadAssetConfig(cfg.AssetsFile)
	if err != nil {
		logger.Fatal("Failed to load assets", zap.Error(err))
	}

	oracle, err := common.NewRateOracle(cfg.Rates)
	if err != nil {
		logger.Fatal("Failed to create rate oracle", zap.Error(err))
	}

	results := []checkResult{
		{name: "assets", detail: fmt.Sprintf("%v, default %s", assets.Symbols(), assets.Default().Symbol)},
		{name: "admins", detail: fmt.Sprintf("%d configured", len(cfg.Bot.AdminIds))},
		checkDatabase(ctx, cfg),
		checkCryptoPay(ctx, cfg.CryptoPay),
	}
	results = append(results, checkRates(ctx, oracle, assets)...)

	common.PrintHeader("ENVIRONMENT CHECK", common.DefaultWidth)
	failed := 0
	for i, r := range results {
		status := "ok"
		detail := r.detail
		if r.err != nil {
			status = "FAILED"
			detail = r.err.Error()
			failed++
		}
		fmt.Printf("%s %-12s %-7s %s\n", common.BoxPrefix(i == len(results)-1), r.name, status, detail)
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d checks, %d failed", len(results), failed), common.DefaultWidth)

	if failed > 0 {
		logger.Warn("Environment check found problems", zap.Int("failed", failed))
	}
}
