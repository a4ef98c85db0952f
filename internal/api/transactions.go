package api

import (
	"context"
	"errors"
	"fmt"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"

	"go.uber.org/zap"
)

// GetTransactionHistory returns paginated transaction history for a user, newest first
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.db.GetTransactionHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.Int64("user_id", userId),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return transactions, nil
}

// Mismatch is an account whose stored balance disagrees with its audit log
type Mismatch struct {
	User   models.User
	Result models.ReconciliationResult
}

// Reconcile checks every account, or only userId when it is non-zero
func (s *LedgerService) Reconcile(ctx context.Context, userId int64) ([]models.User, []Mismatch, error) {
	var users []models.User
	if userId != 0 {
		user, err := s.db.GetUserById(ctx, userId)
		if err != nil {
			return nil, nil, err
		}
		users = []models.User{*user}
	} else {
		var err error
		users, err = s.db.GetUsers(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list users: %w", err)
		}
	}

	var mismatches []Mismatch
	for _, user := range users {
		result, err := s.db.ReconcileUser(ctx, user.Id)
		if errors.Is(err, store.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reconcile user %d: %w", user.Id, err)
		}
		if !result.Stored.Equal(result.Calculated) {
			mismatches = append(mismatches, Mismatch{User: user, Result: *result})
		}
	}
	return users, mismatches, nil
}
