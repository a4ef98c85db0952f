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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSummary is the account view shown to a user
type AccountSummary struct {
	User          User            `json:"user"`
	Available     decimal.Decimal `json:"available"`
	ReferralCount int             `json:"referral_count"`
	ReferralRate  decimal.Decimal `json:"referral_rate"`
}

// ReferralSummary lists a user's referred accounts
type ReferralSummary struct {
	UserId       int64           `json:"user_id"`
	Tier         string          `json:"tier"`
	ReferralRate decimal.Decimal `json:"referral_rate"`
	Referrals    []Referral      `json:"referrals"`
}

// RegistrationResult describes the outcome of /start
type RegistrationResult struct {
	User       *User  `json:"user"`
	Created    bool   `json:"created"`
	ReferredBy *int64 `json:"referred_by,omitempty"`
}

// BonusStatus is the daily bonus screen for one user
type BonusStatus struct {
	CanClaim        bool            `json:"can_claim"`
	DepositRequired bool            `json:"deposit_required"`
	Tier            string          `json:"tier"`
	BonusMin        decimal.Decimal `json:"bonus_min"`
	BonusMax        decimal.Decimal `json:"bonus_max"`
	TotalClaimed    decimal.Decimal `json:"total_claimed"`
	StreakDays      int             `json:"streak_days"`
	NextClaimAt     *time.Time      `json:"next_claim_at,omitempty"`
}

// ClaimResult is returned after a successful daily bonus claim
type ClaimResult struct {
	UserId        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	StreakDays    int             `json:"streak_days"`
	TotalClaimed  decimal.Decimal `json:"total_claimed"`
	EarningAmount decimal.Decimal `json:"earning_amount"`
	ClaimedAt     time.Time       `json:"claimed_at"`
}

// WithdrawalResult is returned after funds were reserved and a request filed
type WithdrawalResult struct {
	Request    WithdrawalRequest `json:"request"`
	NewBalance decimal.Decimal   `json:"new_balance"`
}

// DepositConfirmation is returned after an invoice was credited to the ledger
type DepositConfirmation struct {
	Invoice       PaymentInvoice  `json:"invoice"`
	UsdAmount     decimal.Decimal `json:"usd_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	Tier          string          `json:"tier"`
	ReferrerId    *int64          `json:"referrer_id,omitempty"`
	ReferralBonus decimal.Decimal `json:"referral_bonus"`
}

// InvoiceCheck is the result of reconciling one invoice against the processor
type InvoiceCheck struct {
	Invoice         PaymentInvoice       `json:"invoice"`
	ProcessorStatus string               `json:"processor_status"`
	Confirmation    *DepositConfirmation `json:"confirmation,omitempty"`
	AlreadyPaid     bool                 `json:"already_paid"`
}

// ReconciliationResult compares stored balances with the transaction log
type ReconciliationResult struct {
	UserId     int64           `json:"user_id"`
	Stored     decimal.Decimal `json:"stored"`
	Calculated decimal.Decimal `json:"calculated"`
}

func (r ReconciliationResult) Balanced() bool {
	return r.Stored.Equal(r.Calculated)
}
