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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/tier"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// balanceChange is one ledger movement applied to a loaded user row.
// Deltas are signed; the audit amount is their sum.
type balanceChange struct {
	DepositDelta    decimal.Decimal
	EarningDelta    decimal.Decimal
	TransactionType string
	ExternalId      string
	Reference       string
	At              time.Time
}

// Credit increases earnings for bonus-like kinds, or deposits (re-deriving the tier) for deposits.
func (s *Service) Credit(ctx context.Context, params store.CreditParams) (*models.User, error) {
	if !params.Kind.Valid() {
		return nil, fmt.Errorf("unknown credit kind %q", params.Kind)
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("credit amount must be positive, got %s", params.Amount)
	}

	zap.L().Info("Processing credit",
		zap.Int64("user_id", params.UserId),
		zap.String("kind", string(params.Kind)),
		zap.String("amount", params.Amount.String()),
		zap.String("external_id", params.ExternalId))

	change := balanceChange{
		TransactionType: string(params.Kind),
		ExternalId:      params.ExternalId,
		Reference:       params.Reference,
		At:              s.now(),
	}
	if params.Kind.AffectsDeposit() {
		change.DepositDelta = params.Amount
	} else {
		change.EarningDelta = params.Amount
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = getUserTx(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		_, err = applyBalanceChange(ctx, tx, user, change)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ReserveForWithdrawal debits earnings first, then deposits, failing with
// store.ErrInsufficientFunds when the available balance does not cover usdAmount.
func (s *Service) ReserveForWithdrawal(ctx context.Context, userId int64, usdAmount decimal.Decimal) (*models.User, error) {
	if !usdAmount.IsPositive() {
		return nil, fmt.Errorf("reservation amount must be positive, got %s", usdAmount)
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = getUserTx(ctx, tx, userId)
		if err != nil {
			return err
		}
		return reserveTx(ctx, tx, user, usdAmount, balanceChange{
			TransactionType: models.TransactionTypeWithdrawalRequest,
			Reference:       "withdrawal reservation",
			At:              s.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Refund credits earnings; it is the reversal path of a rejected withdrawal.
func (s *Service) Refund(ctx context.Context, userId int64, usdAmount decimal.Decimal, reference string) (*models.User, error) {
	if !usdAmount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive, got %s", usdAmount)
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = getUserTx(ctx, tx, userId)
		if err != nil {
			return err
		}
		_, err = applyBalanceChange(ctx, tx, user, balanceChange{
			EarningDelta:    usdAmount,
			TransactionType: models.TransactionTypeWithdrawalRefund,
			Reference:       reference,
			At:              s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// splitDebit returns how much of amount comes out of earnings and how much out of deposits.
func splitDebit(user *models.User, amount decimal.Decimal) (fromEarning, fromDeposit decimal.Decimal, err error) {
	available := user.AvailableBalance()
	if available.LessThan(amount) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("available %s, requested %s: %w",
			available.String(), amount.String(), store.ErrInsufficientFunds)
	}

	fromEarning = decimal.Min(decimal.Max(user.EarningAmount, decimal.Zero), amount)
	fromDeposit = amount.Sub(fromEarning)
	return fromEarning, fromDeposit, nil
}

func reserveTx(ctx context.Context, tx *sql.Tx, user *models.User, amount decimal.Decimal, change balanceChange) error {
	fromEarning, fromDeposit, err := splitDebit(user, amount)
	if err != nil {
		return err
	}
	change.EarningDelta = fromEarning.Neg()
	change.DepositDelta = fromDeposit.Neg()
	_, err = applyBalanceChange(ctx, tx, user, change)
	return err
}

// applyBalanceChange updates the user row and appends the audit entry inside tx.
// On success user reflects the committed-to-be state.
func applyBalanceChange(ctx context.Context, tx *sql.Tx, user *models.User, change balanceChange) (*models.Transaction, error) {
	if change.ExternalId != "" {
		var existingId string
		err := tx.QueryRowContext(ctx, queryCheckDuplicateTransaction, change.ExternalId).Scan(&existingId)
		if err == nil {
			zap.L().Warn("Duplicate external id detected, skipping",
				zap.String("external_id", change.ExternalId),
				zap.String("existing_transaction_id", existingId))
			return nil, fmt.Errorf("%w: external_id %s already exists", store.ErrDuplicateTransaction, change.ExternalId)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
	}

	newDeposit := user.DepositAmount.Add(change.DepositDelta)
	newEarning := user.EarningAmount.Add(change.EarningDelta)
	if newDeposit.IsNegative() || newEarning.IsNegative() {
		return nil, fmt.Errorf("balance would go negative for user %d: %w", user.Id, store.ErrInsufficientFunds)
	}
	newTier := tier.For(newDeposit).String()
	at := change.At.UTC()

	result, err := tx.ExecContext(ctx, queryUpdateUserBalances,
		newDeposit.String(), newEarning.String(), newTier, at, user.Id, user.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balances: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	transaction := &models.Transaction{
		Id:              uuid.New().String(),
		UserId:          user.Id,
		TransactionType: change.TransactionType,
		Amount:          change.DepositDelta.Add(change.EarningDelta),
		DepositAfter:    newDeposit,
		EarningAfter:    newEarning,
		ExternalId:      change.ExternalId,
		Reference:       change.Reference,
		CreatedAt:       at,
	}
	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		transaction.Id, transaction.UserId, transaction.TransactionType, transaction.Amount.String(),
		newDeposit.String(), newEarning.String(), transaction.ExternalId, transaction.Reference, at)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	if user.Tier != newTier {
		zap.L().Info("User tier changed",
			zap.Int64("user_id", user.Id),
			zap.String("old_tier", user.Tier),
			zap.String("new_tier", newTier))
	}

	zap.L().Info("Ledger entry recorded",
		zap.String("transaction_id", transaction.Id),
		zap.Int64("user_id", user.Id),
		zap.String("type", transaction.TransactionType),
		zap.String("amount", transaction.Amount.String()),
		zap.String("deposit_after", newDeposit.String()),
		zap.String("earning_after", newEarning.String()))

	user.DepositAmount = newDeposit
	user.EarningAmount = newEarning
	user.Tier = newTier
	user.Version++
	user.UpdatedAt = at
	return transaction, nil
}
