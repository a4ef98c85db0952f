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
	"os/signal"
	"syscall"
	"time"

	"rewards-ledger-bot/internal/bonus"
	"rewards-ledger-bot/internal/bot"
	"rewards-ledger-bot/internal/common"
	"rewards-ledger-bot/internal/config"
	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/listener"
	"rewards-ledger-bot/internal/server"

	"go.uber.org/zap"
)

func main() {
	noPoller := flag.Bool("no-poller", false, "Disable the background invoice poller (rely on the webhook only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		zap.ReplaceGlobals(logger)
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	if err := common.RequireEnv("TELEGRAM_BOT_TOKEN", "CRYPTO_PAY_API_TOKEN"); err != nil {
		zap.L().Fatal("Configuration incomplete", zap.Error(err))
	}
	if len(cfg.Bot.AdminIds) == 0 {
		zap.L().Warn("ADMIN_IDS is empty, withdrawal requests will have no reviewer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting Daily Reward & Referral Bot")

	telegram, err := bot.NewBot(cfg.Bot)
	if err != nil {
		zap.L().Fatal("Failed to connect to Telegram", zap.Error(err))
	}

	notifier := bot.NewNotifier(telegram, cfg.Bot.AdminIds)
	services, err := common.InitializeServices(ctx, cfg, notifier)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	app, err := services.CryptoPay.GetMe(ctx)
	if err != nil {
		zap.L().Fatal("Crypto Pay token check failed", zap.Error(err))
	}
	zap.L().Info("Crypto Pay app verified", zap.String("name", app.Name), zap.Int64("app_id", app.AppId))

	handler := bot.NewHandler(bot.HandlerConfig{
		Accounts:    services.Ledger,
		Bonuses:     services.Bonuses,
		Withdrawals: services.Withdrawals,
		Deposits:    services.Deposits,
		Assets:      services.Assets,
		BonusRules:  bonus.RulesFromConfig(cfg.Rewards),
		AdminIds:    cfg.Bot.AdminIds,
		BotUsername: telegram.Username(),
	})

	var poller *listener.InvoiceListener
	if !*noPoller {
		poller = listener.NewInvoiceListener(listener.InvoiceListenerConfig{
			Deposits:        services.Deposits,
			Processor:       services.CryptoPay,
			PollingInterval: cfg.Listener.PollingInterval,
			CleanupInterval: cfg.Listener.CleanupInterval,
			BatchSize:       cfg.Listener.BatchSize,
		})
		if err := poller.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start invoice poller", zap.Error(err))
		}
	}

	var httpServer *server.Server
	if cfg.Server.ListenAddr != "" {
		var verifier *cryptopay.WebhookVerifier
		if cfg.CryptoPay.WebhookEnabled {
			verifier = cryptopay.NewWebhookVerifier(cfg.CryptoPay.ApiToken)
		}
		httpServer = server.NewServer(cfg.Server, services.Ledger, services.Deposits, verifier)
		httpServer.Start()
	}

	zap.L().Info("Bot running", zap.String("username", telegram.Username()))
	zap.L().Info("Press Ctrl+C to stop")

	if err := telegram.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("Telegram update loop ended", zap.Error(err))
	}

	zap.L().Info("Shutdown signal received, stopping components...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if poller != nil {
			poller.Stop()
		}
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("HTTP server shutdown error", zap.Error(err))
			}
		}
	}()

	select {
	case <-done:
		zap.L().Info("All components stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
