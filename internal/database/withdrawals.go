package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"

	"go.uber.org/zap"
)

func withdrawalExternalId(requestId int64) string {
	return fmt.Sprintf("withdrawal-%d", requestId)
}

// CreateWithdrawalRequest reserves the USD amount and files a pending request
// in one transaction, so reserved funds always have a request row.
func (s *Service) CreateWithdrawalRequest(ctx context.Context, params store.CreateWithdrawalParams) (*models.WithdrawalResult, error) {
	if !params.Amount.IsPositive() || !params.UsdAmount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amounts must be positive, got %s %s (%s USD)",
			params.Amount, params.Asset, params.UsdAmount)
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	var result *models.WithdrawalResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserTx(ctx, tx, params.UserId)
		if err != nil {
			return err
		}

		// Fail before inserting so a refused request leaves no row behind.
		if _, _, err := splitDebit(user, params.UsdAmount); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, queryInsertWithdrawal,
			params.UserId, params.Amount.String(), params.Asset, params.UsdAmount.String(), params.WalletAddress, createdAt)
		if err != nil {
			return fmt.Errorf("failed to insert withdrawal request: %w", err)
		}
		requestId, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read withdrawal request id: %w", err)
		}
		req, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, requestId))
		if err != nil {
			return fmt.Errorf("failed to load withdrawal request: %w", err)
		}

		err = reserveTx(ctx, tx, user, params.UsdAmount, balanceChange{
			TransactionType: models.TransactionTypeWithdrawalRequest,
			ExternalId:      withdrawalExternalId(req.Id),
			Reference:       fmt.Sprintf("withdrawal #%d: %s %s", req.Id, params.Amount.String(), params.Asset),
			At:              createdAt,
		})
		if err != nil {
			return err
		}

		result = &models.WithdrawalResult{
			Request:    *req,
			NewBalance: user.AvailableBalance(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal request created",
		zap.Int64("request_id", result.Request.Id),
		zap.Int64("user_id", params.UserId),
		zap.String("amount", params.Amount.String()),
		zap.String("asset", params.Asset),
		zap.String("usd_amount", params.UsdAmount.String()),
		zap.String("new_balance", result.NewBalance.String()))

	return result, nil
}

func (s *Service) GetWithdrawalRequest(ctx context.Context, requestId int64) (*models.WithdrawalRequest, error) {
	req, err := scanWithdrawal(s.db.QueryRowContext(ctx, queryGetWithdrawal, requestId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("withdrawal request %d: %w", requestId, store.ErrRequestNotFoundOrAlreadyProcessed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal request: %w", err)
	}
	return req, nil
}

func (s *Service) GetPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPendingWithdrawals, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending withdrawals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var requests []models.WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return requests, nil
}

// ApproveWithdrawal moves a pending request to completed. Funds already left
// the ledger at reservation time, so nothing else changes.
func (s *Service) ApproveWithdrawal(ctx context.Context, requestId int64, processedAt time.Time) (*models.WithdrawalRequest, error) {
	var req *models.WithdrawalRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		req, err = transitionWithdrawalTx(ctx, tx, requestId, models.WithdrawalStatusCompleted, processedAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal approved",
		zap.Int64("request_id", requestId),
		zap.Int64("user_id", req.UserId),
		zap.Int64("actor_id", models.GetOperationContext(ctx).ActorId))
	return req, nil
}

// RejectWithdrawal moves a pending request to rejected and refunds the reserved USD to earnings.
func (s *Service) RejectWithdrawal(ctx context.Context, requestId int64, processedAt time.Time) (*models.WithdrawalRequest, error) {
	var req *models.WithdrawalRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		req, err = transitionWithdrawalTx(ctx, tx, requestId, models.WithdrawalStatusRejected, processedAt)
		if err != nil {
			return err
		}

		user, err := getUserTx(ctx, tx, req.UserId)
		if err != nil {
			return err
		}

		_, err = applyBalanceChange(ctx, tx, user, balanceChange{
			EarningDelta:    req.UsdAmount,
			TransactionType: models.TransactionTypeWithdrawalRefund,
			ExternalId:      withdrawalExternalId(req.Id) + "-reversal",
			Reference:       fmt.Sprintf("Reversal of rejected withdrawal #%d", req.Id),
			At:              processedAt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal rejected and refunded",
		zap.Int64("request_id", requestId),
		zap.Int64("user_id", req.UserId),
		zap.String("usd_amount", req.UsdAmount.String()),
		zap.Int64("actor_id", models.GetOperationContext(ctx).ActorId))
	return req, nil
}

// transitionWithdrawalTx is the atomic check-and-set out of pending.
func transitionWithdrawalTx(ctx context.Context, tx *sql.Tx, requestId int64, status string, processedAt time.Time) (*models.WithdrawalRequest, error) {
	result, err := tx.ExecContext(ctx, queryTransitionWithdrawal, status, processedAt.UTC(), requestId)
	if err != nil {
		return nil, fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("withdrawal request %d: %w", requestId, store.ErrRequestNotFoundOrAlreadyProcessed)
	}

	req, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, requestId))
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal request: %w", err)
	}
	return req, nil
}
