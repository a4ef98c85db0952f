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
	"flag"
	"fmt"

	"rewards-ledger-bot/internal/api"
	"rewards-ledger-bot/internal/common"
	"rewards-ledger-bot/internal/config"
	"rewards-ledger-bot/internal/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers   int
	totalDeposit decimal.Decimal
	totalEarning decimal.Decimal
}

func printUser(ctx context.Context, user common.UserInfo, dbService *database.Service) error {
	referrals, err := dbService.CountReferrals(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to count referrals: %w", err)
	}

	referrer := "none"
	if user.ReferrerId != nil {
		referrer = fmt.Sprintf("%d", *user.ReferrerId)
	}

	fmt.Printf("\n┌─ User: %s (%d)\n", user.Username, user.Id)
	fmt.Printf("│  Tier: %s, referrals: %d, referred by: %s\n", user.Tier, referrals, referrer)
	common.PrintBoxSeparator(78)
	fmt.Printf("%s %-10s: %15s\n", common.BoxPrefix(false), "deposit", common.FormatUsd(user.Deposit))
	fmt.Printf("%s %-10s: %15s (joined %s)\n", common.BoxPrefix(true), "earning", common.FormatUsd(user.Earning),
		user.JoinDate.Format("2006-01-02 15:04:05"))
	return nil
}

func main() {
	ctx := context.Background()

	userFlag := flag.Int64("user", 0, "Filter by Telegram user id (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	logger.Info("Starting balance query")

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{totalDeposit: decimal.Zero, totalEarning: decimal.Zero}
	for _, user := range users {
		if err := printUser(ctx, user, dbService); err != nil {
			logger.Error("Failed to process user", zap.Int64("user_id", user.Id), zap.Error(err))
			continue
		}
		stats.totalUsers++
		stats.totalDeposit = stats.totalDeposit.Add(user.Deposit)
		stats.totalEarning = stats.totalEarning.Add(user.Earning)
	}

	ledger := api.NewLedgerService(dbService)
	_, mismatches, err := ledger.Reconcile(ctx, *userFlag)
	if err != nil {
		logger.Fatal("Reconciliation failed", zap.Error(err))
	}

	common.PrintHeader("RECONCILIATION", common.DefaultWidth)
	if len(mismatches) == 0 {
		fmt.Println("All balances match their transaction history")
	}
	for i, m := range mismatches {
		fmt.Printf("%s user %d (%s): stored %s, from history %s\n",
			common.BoxPrefix(i == len(mismatches)-1),
			m.User.Id, m.User.Username,
			common.FormatUsd(m.Result.Stored),
			common.FormatUsd(m.Result.Calculated))
	}

	summary := fmt.Sprintf("SUMMARY: %d users, %s deposited, %s earned, %d mismatches",
		stats.totalUsers, common.FormatUsd(stats.totalDeposit), common.FormatUsd(stats.totalEarning), len(mismatches))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("mismatches", len(mismatches)))
}
