package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditKind selects which balance a ledger credit lands on
type CreditKind string

const (
	CreditDeposit    CreditKind = "deposit"
	CreditBonus      CreditKind = "bonus"
	CreditReferral   CreditKind = "referral"
	CreditDailyBonus CreditKind = "daily_bonus"
)

// AffectsDeposit reports whether the kind raises depositAmount (and so the tier)
func (k CreditKind) AffectsDeposit() bool {
	return k == CreditDeposit
}

func (k CreditKind) Valid() bool {
	switch k {
	case CreditDeposit, CreditBonus, CreditReferral, CreditDailyBonus:
		return true
	}
	return false
}

// Transaction types written to the audit log
const (
	TransactionTypeDeposit           = "deposit"
	TransactionTypeBonus             = "bonus"
	TransactionTypeReferral          = "referral"
	TransactionTypeDailyBonus        = "daily_bonus"
	TransactionTypeWithdrawalRequest = "withdrawal_request"
	TransactionTypeWithdrawalRefund  = "withdrawal_refund"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

const (
	InvoiceStatusActive  = "active"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusDeleted = "deleted"
	InvoiceStatusExpired = "expired"
)

// User is a ledger account keyed by the chat user id
type User struct {
	Id            int64           `db:"id"`
	Username      string          `db:"username"`
	ReferrerId    *int64          `db:"referrer_id"`
	DepositAmount decimal.Decimal `db:"deposit_amount"`
	EarningAmount decimal.Decimal `db:"earning_amount"`
	Tier          string          `db:"tier"`
	Version       int64           `db:"version"`
	JoinDate      time.Time       `db:"join_date"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// AvailableBalance is what a withdrawal may draw on
func (u *User) AvailableBalance() decimal.Decimal {
	return u.DepositAmount.Add(u.EarningAmount)
}

// Transaction is an immutable audit entry; Amount is signed (credit > 0, debit < 0)
type Transaction struct {
	Id              string          `db:"id"`
	UserId          int64           `db:"user_id"`
	TransactionType string          `db:"transaction_type"`
	Amount          decimal.Decimal `db:"amount"`
	DepositAfter    decimal.Decimal `db:"deposit_after"`
	EarningAfter    decimal.Decimal `db:"earning_after"`
	ExternalId      string          `db:"external_id"`
	Reference       string          `db:"reference"`
	CreatedAt       time.Time       `db:"created_at"`
}

// DailyClaim tracks daily bonus state, one row per user
type DailyClaim struct {
	UserId               int64           `db:"user_id"`
	LastClaimDate        *time.Time      `db:"last_claim_date"`
	TotalClaimed         decimal.Decimal `db:"total_claimed"`
	EligibleForFreeBonus bool            `db:"eligible_for_free_bonus"`
	StreakDays           int             `db:"streak_days"`
}

// NewDailyClaim returns the state of a user who has never claimed
func NewDailyClaim(userId int64) *DailyClaim {
	return &DailyClaim{
		UserId:               userId,
		TotalClaimed:         decimal.Zero,
		EligibleForFreeBonus: true,
	}
}

// WithdrawalRequest is a reservation awaiting admin review.
// Amount is in Asset units, UsdAmount is what was debited from the ledger.
type WithdrawalRequest struct {
	Id            int64           `db:"id"`
	UserId        int64           `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	Asset         string          `db:"asset"`
	UsdAmount     decimal.Decimal `db:"usd_amount"`
	WalletAddress string          `db:"wallet_address"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
}

// PaymentInvoice mirrors an invoice issued by the payment processor
type PaymentInvoice struct {
	InvoiceId int64           `db:"invoice_id"`
	UserId    int64           `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	Asset     string          `db:"asset"`
	PayUrl    string          `db:"pay_url"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	PaidAt    *time.Time      `db:"paid_at"`
}

// Referral is a referred account as shown to its referrer
type Referral struct {
	UserId        int64           `db:"id"`
	Username      string          `db:"username"`
	Tier          string          `db:"tier"`
	DepositAmount decimal.Decimal `db:"deposit_amount"`
	JoinDate      time.Time       `db:"join_date"`
}
