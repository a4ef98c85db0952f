package deposit

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/database"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/rates"
	"rewards-ledger-bot/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu        sync.Mutex
	nextId    int64
	invoices  map[int64]models.ProcessorInvoice
	createErr error
	deleteErr error
	deleted   []int64
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{nextId: 1000, invoices: map[int64]models.ProcessorInvoice{}}
}

func (p *fakeProcessor) CreateInvoice(_ context.Context, asset string, amount decimal.Decimal, _ string) (*models.ProcessorInvoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.nextId++
	inv := models.ProcessorInvoice{
		InvoiceId: p.nextId,
		Status:    cryptopay.StatusActive,
		Asset:     asset,
		Amount:    amount,
		PayUrl:    "https://t.me/CryptoTestnetBot?start=IV",
	}
	p.invoices[inv.InvoiceId] = inv
	return &inv, nil
}

func (p *fakeProcessor) GetInvoices(_ context.Context, ids []int64) ([]models.ProcessorInvoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.ProcessorInvoice
	for _, id := range ids {
		if inv, ok := p.invoices[id]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (p *fakeProcessor) DeleteInvoice(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, id)
	delete(p.invoices, id)
	return nil
}

func (p *fakeProcessor) setStatus(id int64, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inv := p.invoices[id]
	inv.Status = status
	if status == cryptopay.StatusPaid {
		now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
		inv.PaidAt = &now
	}
	p.invoices[id] = inv
}

type fixedRates map[string]string

func (f fixedRates) Rate(_ context.Context, asset string) rates.Rate {
	return rates.Rate{Asset: asset, UsdPrice: decimal.RequireFromString(f[asset])}
}

type recordingNotifier struct {
	confirmed []models.DepositConfirmation
}

func (n *recordingNotifier) NotifyDepositConfirmed(_ context.Context, c models.DepositConfirmation) error {
	n.confirmed = append(n.confirmed, c)
	return nil
}

type fixture struct {
	wf        *Workflow
	db        *database.Service
	processor *fakeProcessor
	notifier  *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "deposit.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	assets := models.NewAssetCatalogue([]models.Asset{
		{Symbol: "USDT", MinDeposit: decimal.NewFromInt(10), MinWithdrawal: decimal.NewFromInt(10)},
		{Symbol: "BTC", MinDeposit: decimal.RequireFromString("0.0005"), MinWithdrawal: decimal.RequireFromString("0.0005")},
	}, "USDT")

	f := &fixture{db: db, processor: newFakeProcessor(), notifier: &recordingNotifier{}}
	f.wf = NewWorkflow(db, f.processor, fixedRates{"USDT": "1", "BTC": "60000"}, assets, f.notifier)
	return f
}

func (f *fixture) user(t *testing.T, userId int64, referrerId *int64) {
	t.Helper()
	_, _, err := f.db.CreateUser(context.Background(), store.CreateUserParams{UserId: userId, ReferrerId: referrerId})
	require.NoError(t, err)
}

func TestCreateInvoice_PersistsActive(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, nil)

	invoice, err := f.wf.CreateInvoice(context.Background(), 1, "usdt", decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusActive, invoice.Status)
	assert.Equal(t, "USDT", invoice.Asset)
	assert.NotEmpty(t, invoice.PayUrl)

	active, err := f.wf.ListActive(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreateInvoice_Failures(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, nil)
	ctx := context.Background()

	_, err := f.wf.CreateInvoice(ctx, 1, "DOGE", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, models.ErrUnsupportedAsset)

	_, err = f.wf.CreateInvoice(ctx, 1, "BTC", decimal.RequireFromString("0.0004"))
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = f.wf.CreateInvoice(ctx, 2, "USDT", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	f.processor.createErr = errors.Join(models.ErrExternalService, errors.New("timeout"))
	_, err = f.wf.CreateInvoice(ctx, 1, "USDT", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrInvoiceCreationFailed)

	active, err := f.wf.ListActive(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, active, "no row may be stored when the processor fails")
}

func TestCheck_ConfirmsOnceAndPaysReferrer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1, nil)
	referrer := int64(1)
	f.user(t, 2, &referrer)

	invoice, err := f.wf.CreateInvoice(ctx, 2, "BTC", decimal.RequireFromString("0.001"))
	require.NoError(t, err)

	check, err := f.wf.Check(ctx, 2, invoice.InvoiceId)
	require.NoError(t, err)
	assert.Equal(t, cryptopay.StatusActive, check.ProcessorStatus)
	assert.Nil(t, check.Confirmation)

	f.processor.setStatus(invoice.InvoiceId, cryptopay.StatusPaid)
	check, err = f.wf.Check(ctx, 2, invoice.InvoiceId)
	require.NoError(t, err)
	require.NotNil(t, check.Confirmation)
	assert.True(t, check.Confirmation.UsdAmount.Equal(decimal.NewFromInt(60)), "usd %s", check.Confirmation.UsdAmount)
	assert.Equal(t, "Silver", check.Confirmation.Tier)
	// Bronze referrer earns 5%
	assert.True(t, check.Confirmation.ReferralBonus.Equal(decimal.NewFromInt(3)), "bonus %s", check.Confirmation.ReferralBonus)

	check, err = f.wf.Check(ctx, 2, invoice.InvoiceId)
	require.NoError(t, err)
	assert.True(t, check.AlreadyPaid)

	user, err := f.db.GetUserById(ctx, 2)
	require.NoError(t, err)
	assert.True(t, user.DepositAmount.Equal(decimal.NewFromInt(60)))
	assert.Empty(t, f.notifier.confirmed, "manual checks reply directly")
}

func TestCheck_OtherUsersInvoice(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, nil)
	f.user(t, 2, nil)

	invoice, err := f.wf.CreateInvoice(context.Background(), 1, "USDT", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = f.wf.Check(context.Background(), 2, invoice.InvoiceId)
	assert.ErrorIs(t, err, store.ErrInvoiceNotFound)
}

func TestSettle_NotifiesAndExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1, nil)

	paid, err := f.wf.CreateInvoice(ctx, 1, "USDT", decimal.NewFromInt(15))
	require.NoError(t, err)
	expired, err := f.wf.CreateInvoice(ctx, 1, "USDT", decimal.NewFromInt(10))
	require.NoError(t, err)

	f.processor.setStatus(paid.InvoiceId, cryptopay.StatusPaid)
	f.processor.setStatus(expired.InvoiceId, cryptopay.StatusExpired)

	remote, err := f.processor.GetInvoices(ctx, []int64{paid.InvoiceId, expired.InvoiceId})
	require.NoError(t, err)
	for _, inv := range remote {
		_, err := f.wf.Settle(ctx, inv)
		require.NoError(t, err)
	}
	require.Len(t, f.notifier.confirmed, 1)

	again, err := f.wf.Settle(ctx, remote[0])
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)
	assert.Len(t, f.notifier.confirmed, 1)

	stored, err := f.db.GetInvoice(ctx, expired.InvoiceId)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusExpired, stored.Status)

	active, err := f.wf.ListActive(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1, nil)

	invoice, err := f.wf.CreateInvoice(ctx, 1, "USDT", decimal.NewFromInt(10))
	require.NoError(t, err)

	f.processor.deleteErr = errors.New("processor down")
	require.Error(t, f.wf.DeleteInvoice(ctx, invoice.InvoiceId))
	stored, err := f.db.GetInvoice(ctx, invoice.InvoiceId)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusActive, stored.Status, "local row stays active when the processor refuses")

	f.processor.deleteErr = nil
	require.NoError(t, f.wf.DeleteInvoice(ctx, invoice.InvoiceId))
	stored, err = f.db.GetInvoice(ctx, invoice.InvoiceId)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusDeleted, stored.Status)

	assert.ErrorIs(t, f.wf.DeleteInvoice(ctx, invoice.InvoiceId), store.ErrInvoiceNotFound)
}
