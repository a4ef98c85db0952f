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
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewards-ledger-bot/internal/bot"
	"rewards-ledger-bot/internal/common"
	"rewards-ledger-bot/internal/config"
	"rewards-ledger-bot/internal/listener"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single poll and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		zap.ReplaceGlobals(logger)
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting Crypto Pay invoice listener")

	// Depositors are told about confirmations through Telegram when a token
	// is configured.
	var sender bot.Sender = bot.LogSender{}
	if cfg.Bot.Token != "" {
		telegram, err := bot.NewBot(cfg.Bot)
		if err != nil {
			zap.L().Warn("Unable to reach Telegram, notifications are logged only", zap.Error(err))
		} else {
			sender = telegram
		}
	}

	services, err := common.InitializeServices(ctx, cfg, bot.NewNotifier(sender, cfg.Bot.AdminIds))
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	l := listener.NewInvoiceListener(listener.InvoiceListenerConfig{
		Deposits:        services.Deposits,
		Processor:       services.CryptoPay,
		PollingInterval: cfg.Listener.PollingInterval,
		CleanupInterval: cfg.Listener.CleanupInterval,
		BatchSize:       cfg.Listener.BatchSize,
	})

	if *once {
		summary, err := l.PollOnce(ctx)
		if err != nil {
			zap.L().Fatal("Poll failed", zap.Error(err))
		}
		zap.L().Info("Poll complete",
			zap.Int("active", summary.Active),
			zap.Int("confirmed", summary.Confirmed),
			zap.Int("expired", summary.Expired),
			zap.Int("failed", summary.Failed))
		return
	}

	if err := l.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start listener", zap.Error(err))
	}
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping listener...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Listener stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
