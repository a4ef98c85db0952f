package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/tier"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func invoiceExternalId(invoiceId int64) string {
	return fmt.Sprintf("invoice-%d", invoiceId)
}

func (s *Service) CreateInvoice(ctx context.Context, params store.CreateInvoiceParams) (*models.PaymentInvoice, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("invoice amount must be positive, got %s", params.Amount)
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	var invoice *models.PaymentInvoice
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := userExistsTx(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("user %d: %w", params.UserId, store.ErrUserNotFound)
		}

		_, err = tx.ExecContext(ctx, queryInsertInvoice,
			params.InvoiceId, params.UserId, params.Amount.String(), params.Asset, params.PayUrl, createdAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		invoice, err = scanInvoice(tx.QueryRowContext(ctx, queryGetInvoice, params.InvoiceId))
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Invoice stored",
		zap.Int64("invoice_id", invoice.InvoiceId),
		zap.Int64("user_id", invoice.UserId),
		zap.String("amount", invoice.Amount.String()),
		zap.String("asset", invoice.Asset))
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceId int64) (*models.PaymentInvoice, error) {
	invoice, err := scanInvoice(s.db.QueryRowContext(ctx, queryGetInvoice, invoiceId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", invoiceId, store.ErrInvoiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return invoice, nil
}

func (s *Service) GetActiveInvoices(ctx context.Context, limit, offset int) ([]models.PaymentInvoice, error) {
	rows, err := s.db.QueryContext(ctx, queryGetActiveInvoices, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query active invoices: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var invoices []models.PaymentInvoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// ConfirmInvoicePayment marks the invoice paid, credits the USD value to the
// payer's deposits and pays the referrer's tier bonus, all in one transaction.
// Active and expired invoices can be confirmed; a paid one yields store.ErrInvoiceAlreadyPaid.
func (s *Service) ConfirmInvoicePayment(ctx context.Context, params store.ConfirmInvoiceParams) (*models.DepositConfirmation, error) {
	if !params.UsdAmount.IsPositive() {
		return nil, fmt.Errorf("usd amount must be positive, got %s", params.UsdAmount)
	}
	paidAt := params.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = paidAt.UTC()

	var confirmation *models.DepositConfirmation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		invoice, err := scanInvoice(tx.QueryRowContext(ctx, queryGetInvoice, params.InvoiceId))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("invoice %d: %w", params.InvoiceId, store.ErrInvoiceNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}

		switch invoice.Status {
		case models.InvoiceStatusPaid:
			return fmt.Errorf("invoice %d: %w", invoice.InvoiceId, store.ErrInvoiceAlreadyPaid)
		case models.InvoiceStatusActive, models.InvoiceStatusExpired:
		default:
			return fmt.Errorf("invoice %d has status %s: %w", invoice.InvoiceId, invoice.Status, store.ErrInvoiceNotFound)
		}

		result, err := tx.ExecContext(ctx, queryMarkInvoicePaid, paidAt, invoice.InvoiceId, invoice.Status)
		if err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("invoice %d status changed - %w", invoice.InvoiceId, store.ErrConcurrentModification)
		}
		invoice.Status = models.InvoiceStatusPaid
		invoice.PaidAt = &paidAt

		user, err := getUserTx(ctx, tx, invoice.UserId)
		if err != nil {
			return err
		}
		_, err = applyBalanceChange(ctx, tx, user, balanceChange{
			DepositDelta:    params.UsdAmount,
			TransactionType: models.TransactionTypeDeposit,
			ExternalId:      invoiceExternalId(invoice.InvoiceId),
			Reference:       fmt.Sprintf("invoice #%d: %s %s", invoice.InvoiceId, invoice.Amount.String(), invoice.Asset),
			At:              paidAt,
		})
		if err != nil {
			return err
		}

		confirmation = &models.DepositConfirmation{
			Invoice:       *invoice,
			UsdAmount:     params.UsdAmount,
			DepositAmount: user.DepositAmount,
			Tier:          user.Tier,
			ReferralBonus: decimal.Zero,
		}

		if user.ReferrerId == nil {
			return nil
		}
		referrer, err := getUserTx(ctx, tx, *user.ReferrerId)
		if errors.Is(err, store.ErrUserNotFound) {
			zap.L().Warn("Referrer missing, skipping referral bonus",
				zap.Int64("user_id", user.Id),
				zap.Int64("referrer_id", *user.ReferrerId))
			return nil
		}
		if err != nil {
			return err
		}

		bonus := tier.For(referrer.DepositAmount).ReferralBonus(params.UsdAmount).Round(8)
		if !bonus.IsPositive() {
			return nil
		}
		_, err = applyBalanceChange(ctx, tx, referrer, balanceChange{
			EarningDelta:    bonus,
			TransactionType: models.TransactionTypeReferral,
			ExternalId:      invoiceExternalId(invoice.InvoiceId) + "-referral",
			Reference:       fmt.Sprintf("referral bonus from user %d, invoice #%d", user.Id, invoice.InvoiceId),
			At:              paidAt,
		})
		if err != nil {
			return err
		}
		confirmation.ReferrerId = &referrer.Id
		confirmation.ReferralBonus = bonus
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Invoice payment confirmed",
		zap.Int64("invoice_id", params.InvoiceId),
		zap.Int64("user_id", confirmation.Invoice.UserId),
		zap.String("usd_amount", params.UsdAmount.String()),
		zap.String("tier", confirmation.Tier),
		zap.String("referral_bonus", confirmation.ReferralBonus.String()))

	return confirmation, nil
}

// SetInvoiceStatus performs a non-ledger status transition, such as active to
// deleted or expired. Payment goes through ConfirmInvoicePayment.
func (s *Service) SetInvoiceStatus(ctx context.Context, invoiceId int64, fromStatus, toStatus string) error {
	if toStatus == models.InvoiceStatusPaid {
		return fmt.Errorf("invoice %d: use ConfirmInvoicePayment to mark paid", invoiceId)
	}

	result, err := s.db.ExecContext(ctx, querySetInvoiceStatus, toStatus, invoiceId, fromStatus)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %d not in status %s: %w", invoiceId, fromStatus, store.ErrInvoiceNotFound)
	}

	zap.L().Info("Invoice status changed",
		zap.Int64("invoice_id", invoiceId),
		zap.String("from", fromStatus),
		zap.String("to", toStatus))
	return nil
}
