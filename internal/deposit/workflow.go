// Package deposit issues processor invoices and credits them once paid.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/metrics"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/rates"
	"rewards-ledger-bot/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvoiceCreationFailed = errors.New("invoice creation failed")
	ErrBelowMinimum          = errors.New("amount below minimum deposit")
)

type Ledger interface {
	GetUserById(ctx context.Context, userId int64) (*models.User, error)
	CreateInvoice(ctx context.Context, params store.CreateInvoiceParams) (*models.PaymentInvoice, error)
	GetInvoice(ctx context.Context, invoiceId int64) (*models.PaymentInvoice, error)
	GetActiveInvoices(ctx context.Context, limit, offset int) ([]models.PaymentInvoice, error)
	ConfirmInvoicePayment(ctx context.Context, params store.ConfirmInvoiceParams) (*models.DepositConfirmation, error)
	SetInvoiceStatus(ctx context.Context, invoiceId int64, fromStatus, toStatus string) error
}

// Processor is the payment processor contract
type Processor interface {
	CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string) (*models.ProcessorInvoice, error)
	GetInvoices(ctx context.Context, invoiceIds []int64) ([]models.ProcessorInvoice, error)
	DeleteInvoice(ctx context.Context, invoiceId int64) error
}

type RateSource interface {
	Rate(ctx context.Context, asset string) rates.Rate
}

// Notifier tells a depositor about a confirmation that happened in the background.
type Notifier interface {
	NotifyDepositConfirmed(ctx context.Context, confirmation models.DepositConfirmation) error
}

type Workflow struct {
	ledger    Ledger
	processor Processor
	rates     RateSource
	assets    *models.AssetCatalogue
	notifier  Notifier
	now       func() time.Time
}

func NewWorkflow(ledger Ledger, processor Processor, rateSource RateSource, assets *models.AssetCatalogue, notifier Notifier) *Workflow {
	return &Workflow{
		ledger:    ledger,
		processor: processor,
		rates:     rateSource,
		assets:    assets,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvoice asks the processor for a payable invoice and stores it as
// active. Nothing is stored if the processor call fails.
func (w *Workflow) CreateInvoice(ctx context.Context, userId int64, symbol string, amount decimal.Decimal) (*models.PaymentInvoice, error) {
	asset, ok := w.assets.Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrUnsupportedAsset)
	}
	if amount.LessThan(asset.MinDeposit) {
		return nil, fmt.Errorf("minimum is %s %s: %w", asset.MinDeposit.String(), asset.Symbol, ErrBelowMinimum)
	}
	if _, err := w.ledger.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Deposit to bot account for user %d", userId)
	procInvoice, err := w.processor.CreateInvoice(ctx, asset.Symbol, amount, description)
	if err != nil {
		metrics.RecordOperation("invoice_create", err)
		zap.L().Error("Processor failed to create invoice",
			zap.Int64("user_id", userId),
			zap.String("asset", asset.Symbol),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvoiceCreationFailed, err)
	}

	invoice, err := w.ledger.CreateInvoice(ctx, store.CreateInvoiceParams{
		InvoiceId: procInvoice.InvoiceId,
		UserId:    userId,
		Amount:    amount,
		Asset:     asset.Symbol,
		PayUrl:    procInvoice.PayUrl,
		CreatedAt: w.now(),
	})
	metrics.RecordOperation("invoice_create", err)
	if err != nil {
		// Do not leave a payable invoice the ledger cannot credit.
		if delErr := w.processor.DeleteInvoice(ctx, procInvoice.InvoiceId); delErr != nil {
			zap.L().Error("Failed to delete orphaned processor invoice",
				zap.Int64("invoice_id", procInvoice.InvoiceId),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrInvoiceCreationFailed, err)
	}
	return invoice, nil
}

// Check reconciles one of the user's invoices against the processor. The
// processor is queried before any ledger transaction opens.
func (w *Workflow) Check(ctx context.Context, userId, invoiceId int64) (*models.InvoiceCheck, error) {
	local, err := w.ledger.GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if local.UserId != userId {
		return nil, fmt.Errorf("invoice %d does not belong to user %d: %w", invoiceId, userId, store.ErrInvoiceNotFound)
	}
	if local.Status == models.InvoiceStatusPaid {
		return &models.InvoiceCheck{Invoice: *local, ProcessorStatus: cryptopay.StatusPaid, AlreadyPaid: true}, nil
	}

	remote, err := w.processor.GetInvoices(ctx, []int64{invoiceId})
	if err != nil {
		return nil, err
	}
	for _, inv := range remote {
		if inv.InvoiceId == invoiceId {
			return w.ApplyStatus(ctx, local, inv)
		}
	}
	return nil, fmt.Errorf("processor does not know invoice %d: %w", invoiceId, store.ErrInvoiceNotFound)
}

// ApplyStatus moves the local invoice to match the processor's status.
// Paid invoices are credited exactly once; a repeat is reported as AlreadyPaid.
func (w *Workflow) ApplyStatus(ctx context.Context, local *models.PaymentInvoice, remote models.ProcessorInvoice) (*models.InvoiceCheck, error) {
	check := &models.InvoiceCheck{Invoice: *local, ProcessorStatus: remote.Status}

	switch remote.Status {
	case cryptopay.StatusPaid:
		usdAmount := w.rates.Rate(ctx, local.Asset).ToUsd(local.Amount)
		paidAt := w.now()
		if remote.PaidAt != nil {
			paidAt = remote.PaidAt.UTC()
		}

		confirmation, err := w.ledger.ConfirmInvoicePayment(ctx, store.ConfirmInvoiceParams{
			InvoiceId: local.InvoiceId,
			UsdAmount: usdAmount,
			PaidAt:    paidAt,
		})
		metrics.RecordOperation("deposit_confirm", err, store.ErrInvoiceAlreadyPaid)
		if errors.Is(err, store.ErrInvoiceAlreadyPaid) {
			zap.L().Info("Invoice already credited", zap.Int64("invoice_id", local.InvoiceId))
			check.AlreadyPaid = true
			return check, nil
		}
		if err != nil {
			return nil, err
		}
		metrics.DepositsConfirmedTotal.WithLabelValues(local.Asset).Inc()
		check.Invoice = confirmation.Invoice
		check.Confirmation = confirmation

	case cryptopay.StatusExpired:
		if local.Status == models.InvoiceStatusActive {
			err := w.ledger.SetInvoiceStatus(ctx, local.InvoiceId, models.InvoiceStatusActive, models.InvoiceStatusExpired)
			if err != nil && !errors.Is(err, store.ErrInvoiceNotFound) {
				return nil, err
			}
			check.Invoice.Status = models.InvoiceStatusExpired
		}
	}
	return check, nil
}

// Settle applies a processor status observed in the background (poller or
// webhook) and notifies the depositor when it produced a confirmation.
func (w *Workflow) Settle(ctx context.Context, remote models.ProcessorInvoice) (*models.InvoiceCheck, error) {
	local, err := w.ledger.GetInvoice(ctx, remote.InvoiceId)
	if err != nil {
		return nil, err
	}
	if local.Status == models.InvoiceStatusPaid {
		return &models.InvoiceCheck{Invoice: *local, ProcessorStatus: remote.Status, AlreadyPaid: true}, nil
	}

	check, err := w.ApplyStatus(ctx, local, remote)
	if err != nil {
		return nil, err
	}
	if check.Confirmation != nil && w.notifier != nil {
		if err := w.notifier.NotifyDepositConfirmed(ctx, *check.Confirmation); err != nil {
			zap.L().Error("Failed to notify depositor",
				zap.Int64("invoice_id", remote.InvoiceId),
				zap.Int64("user_id", local.UserId),
				zap.Error(err))
		}
	}
	return check, nil
}

// DeleteInvoice removes an active invoice at the processor first and only then
// marks the local row deleted.
func (w *Workflow) DeleteInvoice(ctx context.Context, invoiceId int64) error {
	local, err := w.ledger.GetInvoice(ctx, invoiceId)
	if err != nil {
		return err
	}
	if local.Status != models.InvoiceStatusActive {
		return fmt.Errorf("invoice %d is %s: %w", invoiceId, local.Status, store.ErrInvoiceNotFound)
	}

	if err := w.processor.DeleteInvoice(ctx, invoiceId); err != nil {
		return fmt.Errorf("unable to delete invoice at processor: %w", err)
	}
	if err := w.ledger.SetInvoiceStatus(ctx, invoiceId, models.InvoiceStatusActive, models.InvoiceStatusDeleted); err != nil {
		return err
	}

	zap.L().Info("Invoice deleted",
		zap.Int64("invoice_id", invoiceId),
		zap.Int64("actor_id", models.GetOperationContext(ctx).ActorId))
	return nil
}

func (w *Workflow) ListActive(ctx context.Context, limit, offset int) ([]models.PaymentInvoice, error) {
	return w.ledger.GetActiveInvoices(ctx, limit, offset)
}
