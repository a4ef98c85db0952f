package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/tier"

	"github.com/shopspring/decimal"
)

func createInvoice(t *testing.T, service *Service, invoiceId, userId int64, amount, asset string) *models.PaymentInvoice {
	t.Helper()

	invoice, err := service.CreateInvoice(context.Background(), store.CreateInvoiceParams{
		InvoiceId: invoiceId,
		UserId:    userId,
		Amount:    decimal.RequireFromString(amount),
		Asset:     asset,
		PayUrl:    "https://t.me/CryptoTestnetBot?start=inv",
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	return invoice
}

func TestCreateInvoice(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	createTestUser(t, service, 1, nil)
	invoice := createInvoice(t, service, 5001, 1, "25", "USDT")
	if invoice.Status != models.InvoiceStatusActive {
		t.Errorf("Expected active invoice, got %s", invoice.Status)
	}
	if invoice.PaidAt != nil {
		t.Errorf("Expected no paid_at, got %v", invoice.PaidAt)
	}

	_, err := service.CreateInvoice(ctx, store.CreateInvoiceParams{
		InvoiceId: 5002, UserId: 2, Amount: decimal.NewFromInt(1), Asset: "USDT",
	})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	if _, err := service.GetInvoice(ctx, 9999); !errors.Is(err, store.ErrInvoiceNotFound) {
		t.Errorf("Expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestConfirmInvoicePayment_CreditsDepositAndReferrer(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	createTestUser(t, service, 1, nil)
	credit(t, service, 1, models.CreditDeposit, "150")
	referrer := int64(1)
	createTestUser(t, service, 2, &referrer)
	createInvoice(t, service, 42, 2, "0.001", "BTC")

	paidAt := time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC)
	confirmation, err := service.ConfirmInvoicePayment(ctx, store.ConfirmInvoiceParams{
		InvoiceId: 42,
		UsdAmount: decimal.NewFromInt(60),
		PaidAt:    paidAt,
	})
	if err != nil {
		t.Fatalf("ConfirmInvoicePayment failed: %v", err)
	}

	if confirmation.Invoice.Status != models.InvoiceStatusPaid {
		t.Errorf("Expected paid invoice, got %s", confirmation.Invoice.Status)
	}
	assertDecimal(t, "deposit", "60", confirmation.DepositAmount)
	if confirmation.Tier != tier.Silver.String() {
		t.Errorf("Expected Silver after 60 USD, got %s", confirmation.Tier)
	}
	if confirmation.ReferrerId == nil || *confirmation.ReferrerId != 1 {
		t.Fatalf("Expected referrer 1, got %v", confirmation.ReferrerId)
	}
	// Gold referrer earns 25%.
	assertDecimal(t, "referral bonus", "15", confirmation.ReferralBonus)

	referrerUser, err := service.GetUserById(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserById failed: %v", err)
	}
	assertDecimal(t, "referrer earning", "15", referrerUser.EarningAmount)

	stored, err := service.GetInvoice(ctx, 42)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if stored.PaidAt == nil || !stored.PaidAt.Equal(paidAt) {
		t.Errorf("Expected paid_at %v, got %v", paidAt, stored.PaidAt)
	}

	assertBalanced(t, service, 1)
	assertBalanced(t, service, 2)
}

func TestConfirmInvoicePayment_OnlyOnce(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	createTestUser(t, service, 1, nil)
	createInvoice(t, service, 7, 1, "10", "USDT")
	params := store.ConfirmInvoiceParams{InvoiceId: 7, UsdAmount: decimal.NewFromInt(10)}

	if _, err := service.ConfirmInvoicePayment(ctx, params); err != nil {
		t.Fatalf("First confirmation failed: %v", err)
	}
	_, err := service.ConfirmInvoicePayment(ctx, params)
	if !errors.Is(err, store.ErrInvoiceAlreadyPaid) {
		t.Fatalf("Expected ErrInvoiceAlreadyPaid, got %v", err)
	}

	user, err := service.GetUserById(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserById failed: %v", err)
	}
	assertDecimal(t, "deposit", "10", user.DepositAmount)
}

func TestConfirmInvoicePayment_ExpiredAndDeleted(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	createTestUser(t, service, 1, nil)
	createInvoice(t, service, 1, 1, "10", "USDT")
	createInvoice(t, service, 2, 1, "10", "USDT")

	if err := service.SetInvoiceStatus(ctx, 1, models.InvoiceStatusActive, models.InvoiceStatusExpired); err != nil {
		t.Fatalf("SetInvoiceStatus(expired) failed: %v", err)
	}
	if err := service.SetInvoiceStatus(ctx, 2, models.InvoiceStatusActive, models.InvoiceStatusDeleted); err != nil {
		t.Fatalf("SetInvoiceStatus(deleted) failed: %v", err)
	}

	if _, err := service.ConfirmInvoicePayment(ctx, store.ConfirmInvoiceParams{InvoiceId: 1, UsdAmount: decimal.NewFromInt(10)}); err != nil {
		t.Errorf("Expected expired invoice to be confirmable, got %v", err)
	}
	_, err := service.ConfirmInvoicePayment(ctx, store.ConfirmInvoiceParams{InvoiceId: 2, UsdAmount: decimal.NewFromInt(10)})
	if !errors.Is(err, store.ErrInvoiceNotFound) {
		t.Errorf("Expected deleted invoice to be refused, got %v", err)
	}
}

func TestSetInvoiceStatus_Guarded(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	createTestUser(t, service, 1, nil)
	createInvoice(t, service, 1, 1, "10", "USDT")
	createInvoice(t, service, 2, 1, "5", "TON")

	if err := service.SetInvoiceStatus(ctx, 1, models.InvoiceStatusActive, models.InvoiceStatusPaid); err == nil {
		t.Error("Expected direct transition to paid to be refused")
	}
	if err := service.SetInvoiceStatus(ctx, 1, models.InvoiceStatusActive, models.InvoiceStatusDeleted); err != nil {
		t.Fatalf("SetInvoiceStatus failed: %v", err)
	}
	err := service.SetInvoiceStatus(ctx, 1, models.InvoiceStatusActive, models.InvoiceStatusDeleted)
	if !errors.Is(err, store.ErrInvoiceNotFound) {
		t.Errorf("Expected guarded transition to fail, got %v", err)
	}

	active, err := service.GetActiveInvoices(ctx, 10, 0)
	if err != nil {
		t.Fatalf("GetActiveInvoices failed: %v", err)
	}
	if len(active) != 1 || active[0].InvoiceId != 2 {
		t.Errorf("Expected only invoice 2 to be active, got %+v", active)
	}
}
