package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"

	"go.uber.org/zap"
)

// GetDailyClaim returns the user's claim state; users who never claimed get a fresh record.
func (s *Service) GetDailyClaim(ctx context.Context, userId int64) (*models.DailyClaim, error) {
	claim, err := scanDailyClaim(s.db.QueryRowContext(ctx, queryGetDailyClaim, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewDailyClaim(userId), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load daily claim: %w", err)
	}
	return claim, nil
}

// RevokeFreeBonus flips eligible_for_free_bonus to false. It is one-way and
// reports whether this call performed the flip.
func (s *Service) RevokeFreeBonus(ctx context.Context, userId int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryRevokeFreeBonus, userId)
	if err != nil {
		return false, fmt.Errorf("failed to revoke free bonus: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n > 0 {
		zap.L().Info("Free bonus eligibility revoked", zap.Int64("user_id", userId))
	}
	return n > 0, nil
}

// ApplyDailyClaim upserts the claim record, credits earnings and appends a
// daily_bonus entry in one transaction. The cooldown is re-checked against the
// locked row so two concurrent claims cannot both succeed.
func (s *Service) ApplyDailyClaim(ctx context.Context, params store.DailyClaimParams) (*models.ClaimResult, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("bonus amount must be positive, got %s", params.Amount)
	}
	claimedAt := params.ClaimedAt.UTC()

	var result *models.ClaimResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserTx(ctx, tx, params.UserId)
		if err != nil {
			return err
		}

		claim, err := scanDailyClaim(tx.QueryRowContext(ctx, queryGetDailyClaim, params.UserId))
		if errors.Is(err, sql.ErrNoRows) {
			claim = models.NewDailyClaim(params.UserId)
		} else if err != nil {
			return fmt.Errorf("failed to load daily claim: %w", err)
		}

		if claim.LastClaimDate != nil && claimedAt.Sub(*claim.LastClaimDate) < params.Cooldown {
			return fmt.Errorf("last claim at %s: %w", claim.LastClaimDate.Format("2006-01-02 15:04:05"), store.ErrClaimTooSoon)
		}

		eligible := claim.EligibleForFreeBonus
		if params.RevokeFreeBonus {
			eligible = false
		}
		total := claim.TotalClaimed.Add(params.Amount)

		_, err = tx.ExecContext(ctx, queryUpsertDailyClaim,
			params.UserId, claimedAt, total.String(), eligible, params.StreakDays)
		if err != nil {
			return fmt.Errorf("failed to upsert daily claim: %w", err)
		}

		_, err = applyBalanceChange(ctx, tx, user, balanceChange{
			EarningDelta:    params.Amount,
			TransactionType: models.TransactionTypeDailyBonus,
			Reference:       fmt.Sprintf("daily bonus, streak %d", params.StreakDays),
			At:              claimedAt,
		})
		if err != nil {
			return err
		}

		result = &models.ClaimResult{
			UserId:        params.UserId,
			Amount:        params.Amount,
			StreakDays:    params.StreakDays,
			TotalClaimed:  total,
			EarningAmount: user.EarningAmount,
			ClaimedAt:     claimedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Daily bonus claimed",
		zap.Int64("user_id", params.UserId),
		zap.String("amount", params.Amount.String()),
		zap.Int("streak_days", params.StreakDays),
		zap.String("total_claimed", result.TotalClaimed.String()))

	return result, nil
}
