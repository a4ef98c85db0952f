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

package store

import (
	"context"
	"errors"
	"time"

	"rewards-ledger-bot/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by every backend
var (
	ErrUserNotFound                      = errors.New("user not found")
	ErrInsufficientFunds                 = errors.New("insufficient funds")
	ErrRequestNotFoundOrAlreadyProcessed = errors.New("withdrawal request not found or already processed")
	ErrInvoiceNotFound                   = errors.New("invoice not found")
	ErrInvoiceAlreadyPaid                = errors.New("invoice already paid")
	ErrClaimTooSoon                      = errors.New("daily bonus already claimed within cooldown")
	ErrConcurrentModification            = errors.New("concurrent modification detected")
	ErrDuplicateTransaction              = errors.New("duplicate transaction")
)

// CreateUserParams contains the parameters for registering an account.
type CreateUserParams struct {
	UserId     int64
	Username   string
	ReferrerId *int64
	JoinDate   time.Time
}

// CreditParams contains the parameters for a ledger credit.
// ExternalId, when set, makes the credit idempotent.
type CreditParams struct {
	UserId     int64
	Amount     decimal.Decimal
	Kind       models.CreditKind
	ExternalId string
	Reference  string
}

// DailyClaimParams carries a computed bonus into the atomic claim write.
type DailyClaimParams struct {
	UserId          int64
	Amount          decimal.Decimal
	StreakDays      int
	ClaimedAt       time.Time
	Cooldown        time.Duration
	RevokeFreeBonus bool
}

// CreateWithdrawalParams contains a withdrawal to reserve and file for review.
type CreateWithdrawalParams struct {
	UserId        int64
	Amount        decimal.Decimal
	Asset         string
	UsdAmount     decimal.Decimal
	WalletAddress string
	CreatedAt     time.Time
}

// CreateInvoiceParams mirrors a processor invoice into local storage.
type CreateInvoiceParams struct {
	InvoiceId int64
	UserId    int64
	Amount    decimal.Decimal
	Asset     string
	PayUrl    string
	CreatedAt time.Time
}

// ConfirmInvoiceParams credits a paid invoice.
// UsdAmount must be converted before the call; no external I/O happens inside the store transaction.
type ConfirmInvoiceParams struct {
	InvoiceId int64
	UsdAmount decimal.Decimal
	PaidAt    time.Time
}

// LedgerStore defines the contract a ledger backend must satisfy.
type LedgerStore interface {
	// --- Users ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, bool, error)
	GetUserById(ctx context.Context, userId int64) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetReferrals(ctx context.Context, userId int64) ([]models.Referral, error)
	CountReferrals(ctx context.Context, userId int64) (int, error)

	// --- Ledger ---
	Credit(ctx context.Context, params CreditParams) (*models.User, error)
	ReserveForWithdrawal(ctx context.Context, userId int64, usdAmount decimal.Decimal) (*models.User, error)
	Refund(ctx context.Context, userId int64, usdAmount decimal.Decimal, reference string) (*models.User, error)
	GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error)
	ReconcileUser(ctx context.Context, userId int64) (*models.ReconciliationResult, error)

	// --- Daily claims ---
	GetDailyClaim(ctx context.Context, userId int64) (*models.DailyClaim, error)
	RevokeFreeBonus(ctx context.Context, userId int64) (bool, error)
	ApplyDailyClaim(ctx context.Context, params DailyClaimParams) (*models.ClaimResult, error)

	// --- Withdrawals ---
	CreateWithdrawalRequest(ctx context.Context, params CreateWithdrawalParams) (*models.WithdrawalResult, error)
	GetWithdrawalRequest(ctx context.Context, requestId int64) (*models.WithdrawalRequest, error)
	GetPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, requestId int64, processedAt time.Time) (*models.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, requestId int64, processedAt time.Time) (*models.WithdrawalRequest, error)

	// --- Invoices ---
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*models.PaymentInvoice, error)
	GetInvoice(ctx context.Context, invoiceId int64) (*models.PaymentInvoice, error)
	GetActiveInvoices(ctx context.Context, limit, offset int) ([]models.PaymentInvoice, error)
	ConfirmInvoicePayment(ctx context.Context, params ConfirmInvoiceParams) (*models.DepositConfirmation, error)
	SetInvoiceStatus(ctx context.Context, invoiceId int64, fromStatus, toStatus string) error

	Ping(ctx context.Context) error
	Close()
}
