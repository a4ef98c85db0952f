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


package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/metrics"
	"rewards-ledger-bot/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultPollingInterval = 30 * time.Second
	DefaultCleanupInterval = 15 * time.Minute
	DefaultBatchSize       = 50
)

// Deposits is the part of the deposit workflow the listener drives
type Deposits interface {
	ListActive(ctx context.Context, limit, offset int) ([]models.PaymentInvoice, error)
	Settle(ctx context.Context, remote models.ProcessorInvoice) (*models.InvoiceCheck, error)
}

// InvoiceFetcher reads invoice state from the payment processor
type InvoiceFetcher interface {
	GetInvoices(ctx context.Context, invoiceIds []int64) ([]models.ProcessorInvoice, error)
}

// InvoiceListenerConfig contains configuration for InvoiceListener
type InvoiceListenerConfig struct {
	Deposits        Deposits
	Processor       InvoiceFetcher
	PollingInterval time.Duration
	CleanupInterval time.Duration
	BatchSize       int
	// Retention is how long a settled invoice id is remembered. Defaults to
	// twice the cleanup interval.
	Retention time.Duration
}

// InvoiceListener polls the processor for active invoices and settles the
// ones that were paid or expired.
type InvoiceListener struct {
	deposits  Deposits
	processor InvoiceFetcher

	// State management for settled invoices
	settled         map[int64]time.Time
	mutex           sync.RWMutex
	pollingInterval time.Duration
	cleanupInterval time.Duration
	retention       time.Duration
	batchSize       int
	now             func() time.Time

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// PollSummary counts what a single poll did
type PollSummary struct {
	Active    int
	Confirmed int
	Expired   int
	Failed    int
}

func NewInvoiceListener(cfg InvoiceListenerConfig) *InvoiceListener {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 2 * cfg.CleanupInterval
	}
	return &InvoiceListener{
		deposits:        cfg.Deposits,
		processor:       cfg.Processor,
		settled:         make(map[int64]time.Time),
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		retention:       cfg.Retention,
		batchSize:       cfg.BatchSize,
		now:             time.Now,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the invoice monitoring process
func (l *InvoiceListener) Start(ctx context.Context) error {
	if l.deposits == nil || l.processor == nil {
		return errors.New("invoice listener needs a deposit workflow and a processor")
	}

	zap.L().Info("Starting invoice listener",
		zap.Duration("polling_interval", l.pollingInterval),
		zap.Int("batch_size", l.batchSize))

	go l.pollLoop(ctx)
	go l.cleanupLoop(ctx)
	return nil
}

// Stop gracefully stops the invoice listener
func (l *InvoiceListener) Stop() {
	l.stopOnce.Do(func() {
		zap.L().Info("Stopping invoice listener")
		close(l.stopChan)
	})
	<-l.doneChan
	zap.L().Info("Invoice listener stopped")
}

func (l *InvoiceListener) pollLoop(ctx context.Context) {
	defer close(l.doneChan)

	ticker := time.NewTicker(l.pollingInterval)
	defer ticker.Stop()

	l.poll(ctx)

	for {
		select {
		case <-ticker.C:
			l.poll(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func (l *InvoiceListener) poll(ctx context.Context) {
	summary, err := l.PollOnce(ctx)
	metrics.RecordOperation("invoice_poll", err)
	if err != nil {
		fmt.Printf("  %s✗ poll failed: %s%s\n", colorRed, err, colorReset)
		zap.L().Error("Invoice poll failed", zap.Error(err))
		return
	}
	if summary.Active > 0 {
		fmt.Printf("%s[%s] %d active invoices: %d confirmed, %d expired, %d failed%s\n",
			colorCyan, l.now().Format("15:04:05"), summary.Active,
			summary.Confirmed, summary.Expired, summary.Failed, colorReset)
	}
}

// PollOnce reconciles every active invoice with the processor. A failure on
// one invoice is logged and counted; the rest of the batch still settles.
func (l *InvoiceListener) PollOnce(ctx context.Context) (PollSummary, error) {
	var summary PollSummary

	// Settling changes invoice status, so collect ids before touching any.
	active, err := l.activeInvoiceIds(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list active invoices: %w", err)
	}
	summary.Active = len(active)

	for start := 0; start < len(active); start += l.batchSize {
		end := min(start+l.batchSize, len(active))
		remote, err := l.processor.GetInvoices(ctx, active[start:end])
		if err != nil {
			return summary, fmt.Errorf("failed to fetch invoices from processor: %w", err)
		}

		for _, inv := range remote {
			if inv.Status != cryptopay.StatusPaid && inv.Status != cryptopay.StatusExpired {
				continue
			}
			if l.isSettled(inv.InvoiceId) {
				continue
			}

			check, err := l.deposits.Settle(ctx, inv)
			if err != nil {
				summary.Failed++
				fmt.Printf("  %s✗ invoice %d %s: %s%s\n", colorRed, inv.InvoiceId, inv.Status, err, colorReset)
				zap.L().Error("Failed to settle invoice",
					zap.Int64("invoice_id", inv.InvoiceId),
					zap.String("status", inv.Status),
					zap.Error(err))
				continue
			}
			l.markSettled(inv.InvoiceId)

			switch {
			case check.Confirmation != nil:
				summary.Confirmed++
				fmt.Printf("  %s✓ invoice %d paid %s %s ($%s)%s\n",
					colorGreen, inv.InvoiceId, check.Invoice.Amount, check.Invoice.Asset,
					check.Confirmation.UsdAmount.StringFixed(2), colorReset)
			case inv.Status == cryptopay.StatusExpired:
				summary.Expired++
				fmt.Printf("  %s~ invoice %d expired%s\n", colorYellow, inv.InvoiceId, colorReset)
			}
		}
	}
	return summary, nil
}

func (l *InvoiceListener) activeInvoiceIds(ctx context.Context) ([]int64, error) {
	var ids []int64
	for offset := 0; ; offset += l.batchSize {
		page, err := l.deposits.ListActive(ctx, l.batchSize, offset)
		if err != nil {
			return nil, err
		}
		for _, inv := range page {
			ids = append(ids, inv.InvoiceId)
		}
		if len(page) < l.batchSize {
			return ids, nil
		}
	}
}

func (l *InvoiceListener) isSettled(invoiceId int64) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, exists := l.settled[invoiceId]
	return exists
}

func (l *InvoiceListener) markSettled(invoiceId int64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.settled[invoiceId] = l.now()
}

// cleanupLoop periodically forgets old settled invoice ids
func (l *InvoiceListener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupSettled()
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *InvoiceListener) cleanupSettled() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := l.now().Add(-l.retention)
	cleaned := 0
	for id, settledAt := range l.settled {
		if settledAt.Before(cutoff) {
			delete(l.settled, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up settled invoices",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(l.settled)))
	}
	return cleaned
}
