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
	"errors"
	"flag"
	"fmt"

	"rewards-ledger-bot/internal/bot"
	"rewards-ledger-bot/internal/common"
	"rewards-ledger-bot/internal/config"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/withdrawal"

	"go.uber.org/zap"
)

type reviewFlags struct {
	list    bool
	approve int64
	reject  int64
	limit   int
}

func parseAndValidateFlags() (*reviewFlags, error) {
	listFlag := flag.Bool("list", false, "List pending withdrawal requests")
	approveFlag := flag.Int64("approve", 0, "Approve the withdrawal request with this id")
	rejectFlag := flag.Int64("reject", 0, "Reject the withdrawal request with this id and refund the user")
	limitFlag := flag.Int("limit", 20, "Maximum number of requests to list")
	flag.Parse()

	chosen := 0
	for _, set := range []bool{*listFlag, *approveFlag != 0, *rejectFlag != 0} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return nil, fmt.Errorf("exactly one of --list, --approve or --reject is required")
	}
	if *approveFlag < 0 || *rejectFlag < 0 {
		return nil, fmt.Errorf("request id must be positive")
	}

	return &reviewFlags{list: *listFlag, approve: *approveFlag, reject: *rejectFlag, limit: *limitFlag}, nil
}

// buildSender delivers user notifications through Telegram when a token is
// configured, otherwise only logs them.
func buildSender(cfg models.BotConfig) bot.Sender {
	if cfg.Token == "" {
		zap.L().Info("TELEGRAM_BOT_TOKEN not set, notifications are logged only")
		return bot.LogSender{}
	}
	telegram, err := bot.NewBot(cfg)
	if err != nil {
		zap.L().Warn("Unable to reach Telegram, notifications are logged only", zap.Error(err))
		return bot.LogSender{}
	}
	return telegram
}

func printPending(requests []models.WithdrawalRequest) {
	common.PrintHeader("PENDING WITHDRAWALS", common.DefaultWidth)
	if len(requests) == 0 {
		fmt.Println("No pending withdrawal requests")
		return
	}
	for i, r := range requests {
		fmt.Printf("%s #%-6d user %-12d %14s %-5s (%s) to %s, %s\n",
			common.BoxPrefix(i == len(requests)-1),
			r.Id, r.UserId,
			r.Amount.String(), r.Asset,
			common.FormatUsd(r.UsdAmount),
			common.ShortAddress(r.WalletAddress),
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func main() {
	ctx := context.Background()

	flags, err := parseAndValidateFlags()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	assets, err := common.LoadAssetConfig(cfg.AssetsFile)
	if err != nil {
		logger.Fatal("Failed to load assets", zap.Error(err))
	}

	oracle, err := common.NewRateOracle(cfg.Rates)
	if err != nil {
		logger.Fatal("Failed to create rate oracle", zap.Error(err))
	}

	notifier := bot.NewNotifier(buildSender(cfg.Bot), cfg.Bot.AdminIds)
	workflow := withdrawal.NewWorkflow(dbService, oracle, assets, notifier, withdrawal.ConfigFromRewards(cfg.Rewards))

	ctx = models.WithOperationContext(ctx, models.OperationContext{Source: "cli"})

	switch {
	case flags.list:
		requests, err := workflow.ListPending(ctx, flags.limit)
		if err != nil {
			logger.Fatal("Failed to list withdrawals", zap.Error(err))
		}
		printPending(requests)

	case flags.approve != 0:
		report(logger, "approved", flags.approve, func() (*models.WithdrawalRequest, error) {
			return workflow.Approve(ctx, flags.approve)
		})

	case flags.reject != 0:
		report(logger, "rejected", flags.reject, func() (*models.WithdrawalRequest, error) {
			return workflow.Reject(ctx, flags.reject)
		})
	}
}

func report(logger *zap.Logger, verb string, requestId int64, decide func() (*models.WithdrawalRequest, error)) {
	req, err := decide()
	switch {
	case errors.Is(err, store.ErrRequestNotFoundOrAlreadyProcessed):
		logger.Fatal("Withdrawal request not found or already processed", zap.Int64("request_id", requestId))
	case err != nil:
		logger.Fatal("Failed to process withdrawal", zap.Int64("request_id", requestId), zap.Error(err))
	}

	summary := fmt.Sprintf("Request #%d %s: %s %s (%s) for user %d",
		req.Id, verb, req.Amount.String(), req.Asset, common.FormatUsd(req.UsdAmount), req.UserId)
	common.PrintFooter(summary, common.DefaultWidth)
	logger.Info("Withdrawal processed", zap.Int64("request_id", req.Id), zap.String("status", req.Status))
}
