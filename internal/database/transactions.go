package database

import (
	"context"
	"database/sql"
	"fmt"

	"rewards-ledger-bot/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetTransactionHistory returns paginated transaction history for a user, newest first
func (s *Service) GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.Int64("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

// ReconcileUser compares the stored available balance with the sum of the user's audit log
func (s *Service) ReconcileUser(ctx context.Context, userId int64) (*models.ReconciliationResult, error) {
	user, err := s.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, queryGetTransactionAmounts, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction amounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	// Summed in Go: SQLite SUM over TEXT would go through floating point.
	calculated := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("failed to scan amount: %w", err)
		}
		calculated = calculated.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating amounts: %w", err)
	}

	result := &models.ReconciliationResult{
		UserId:     userId,
		Stored:     user.AvailableBalance(),
		Calculated: calculated,
	}

	if !result.Balanced() {
		zap.L().Warn("Balance mismatch detected",
			zap.Int64("user_id", userId),
			zap.String("stored", result.Stored.String()),
			zap.String("calculated", calculated.String()),
			zap.String("difference", result.Stored.Sub(calculated).String()))
	} else {
		zap.L().Debug("Balance reconciled successfully",
			zap.Int64("user_id", userId),
			zap.String("balance", calculated.String()))
	}

	return result, nil
}
