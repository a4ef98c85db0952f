package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeposits struct {
	mu        sync.Mutex
	active    []models.PaymentInvoice
	settled   []int64
	failFor   map[int64]bool
	keepAfter bool // leave invoices active after settling
}

func (f *fakeDeposits) ListActive(_ context.Context, limit, offset int) ([]models.PaymentInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.active) {
		return nil, nil
	}
	end := min(offset+limit, len(f.active))
	return append([]models.PaymentInvoice(nil), f.active[offset:end]...), nil
}

func (f *fakeDeposits) Settle(_ context.Context, remote models.ProcessorInvoice) (*models.InvoiceCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[remote.InvoiceId] {
		return nil, errors.New("ledger unavailable")
	}
	f.settled = append(f.settled, remote.InvoiceId)

	check := &models.InvoiceCheck{
		Invoice:         models.PaymentInvoice{InvoiceId: remote.InvoiceId, Asset: remote.Asset, Amount: remote.Amount},
		ProcessorStatus: remote.Status,
	}
	if remote.Status == cryptopay.StatusPaid {
		check.Confirmation = &models.DepositConfirmation{UsdAmount: remote.Amount}
	}
	if !f.keepAfter {
		for i, inv := range f.active {
			if inv.InvoiceId == remote.InvoiceId {
				f.active = append(f.active[:i], f.active[i+1:]...)
				break
			}
		}
	}
	return check, nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	statuses map[int64]string
	calls    [][]int64
	err      error
}

func (f *fakeFetcher) GetInvoices(_ context.Context, ids []int64) ([]models.ProcessorInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]int64(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ProcessorInvoice, 0, len(ids))
	for _, id := range ids {
		status, ok := f.statuses[id]
		if !ok {
			status = cryptopay.StatusActive
		}
		out = append(out, models.ProcessorInvoice{InvoiceId: id, Status: status, Asset: "USDT", Amount: decimal.NewFromInt(10)})
	}
	return out, nil
}

func activeInvoices(ids ...int64) []models.PaymentInvoice {
	out := make([]models.PaymentInvoice, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.PaymentInvoice{InvoiceId: id, Status: models.InvoiceStatusActive, Asset: "USDT"})
	}
	return out
}

func TestPollOnce_SettlesPaidAndExpired(t *testing.T) {
	deposits := &fakeDeposits{active: activeInvoices(1, 2, 3, 4, 5)}
	fetcher := &fakeFetcher{statuses: map[int64]string{
		2: cryptopay.StatusPaid,
		4: cryptopay.StatusExpired,
		5: cryptopay.StatusPaid,
	}}
	l := NewInvoiceListener(InvoiceListenerConfig{Deposits: deposits, Processor: fetcher, BatchSize: 2})

	summary, err := l.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PollSummary{Active: 5, Confirmed: 2, Expired: 1}, summary)
	assert.ElementsMatch(t, []int64{2, 4, 5}, deposits.settled)

	// batches of two over five ids
	require.Len(t, fetcher.calls, 3)
	assert.Equal(t, []int64{1, 2}, fetcher.calls[0])
	assert.Equal(t, []int64{5}, fetcher.calls[2])
}

func TestPollOnce_SkipsAlreadySettled(t *testing.T) {
	deposits := &fakeDeposits{active: activeInvoices(7), keepAfter: true}
	fetcher := &fakeFetcher{statuses: map[int64]string{7: cryptopay.StatusPaid}}
	l := NewInvoiceListener(InvoiceListenerConfig{Deposits: deposits, Processor: fetcher})

	for i := 0; i < 3; i++ {
		_, err := l.PollOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{7}, deposits.settled)
}

func TestPollOnce_RetriesFailures(t *testing.T) {
	deposits := &fakeDeposits{active: activeInvoices(1, 2), failFor: map[int64]bool{1: true}}
	fetcher := &fakeFetcher{statuses: map[int64]string{1: cryptopay.StatusPaid, 2: cryptopay.StatusPaid}}
	l := NewInvoiceListener(InvoiceListenerConfig{Deposits: deposits, Processor: fetcher})

	summary, err := l.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Confirmed)

	deposits.mu.Lock()
	deposits.failFor = nil
	deposits.mu.Unlock()

	summary, err = l.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)
	assert.ElementsMatch(t, []int64{2, 1}, deposits.settled)
}

func TestPollOnce_ProcessorError(t *testing.T) {
	deposits := &fakeDeposits{active: activeInvoices(1)}
	fetcher := &fakeFetcher{err: errors.Join(models.ErrExternalService, errors.New("502"))}
	l := NewInvoiceListener(InvoiceListenerConfig{Deposits: deposits, Processor: fetcher})

	_, err := l.PollOnce(context.Background())
	assert.ErrorIs(t, err, models.ErrExternalService)
	assert.Empty(t, deposits.settled)
}

func TestCleanupSettled(t *testing.T) {
	l := NewInvoiceListener(InvoiceListenerConfig{
		Deposits:  &fakeDeposits{},
		Processor: &fakeFetcher{},
		Retention: time.Hour,
	})
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.markSettled(1)
	now = now.Add(30 * time.Minute)
	l.markSettled(2)
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, l.cleanupSettled())
	assert.False(t, l.isSettled(1))
	assert.True(t, l.isSettled(2))
}

func TestStartStop(t *testing.T) {
	deposits := &fakeDeposits{active: activeInvoices(9)}
	fetcher := &fakeFetcher{statuses: map[int64]string{9: cryptopay.StatusPaid}}
	l := NewInvoiceListener(InvoiceListenerConfig{
		Deposits:        deposits,
		Processor:       fetcher,
		PollingInterval: time.Hour,
	})

	require.NoError(t, l.Start(context.Background()))
	assert.Eventually(t, func() bool {
		deposits.mu.Lock()
		defer deposits.mu.Unlock()
		return len(deposits.settled) == 1
	}, 2*time.Second, 10*time.Millisecond)
	l.Stop()
	l.Stop()
}

func TestStart_RequiresDependencies(t *testing.T) {
	l := NewInvoiceListener(InvoiceListenerConfig{})
	assert.Error(t, l.Start(context.Background()))
}
