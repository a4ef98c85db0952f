package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/tier"

	"go.uber.org/zap"
)

// CreateUser registers an account if it does not exist yet. The referrer is kept
// only when it names another existing account; it is never changed afterwards.
func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, bool, error) {
	var user *models.User
	created := false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getUserTx(ctx, tx, params.UserId)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return err
		}

		referrerId := params.ReferrerId
		if referrerId != nil {
			ok, err := userExistsTx(ctx, tx, *referrerId)
			if err != nil {
				return err
			}
			if !ok || *referrerId == params.UserId {
				zap.L().Info("Ignoring invalid referrer",
					zap.Int64("user_id", params.UserId),
					zap.Int64("referrer_id", *referrerId))
				referrerId = nil
			}
		}

		joinDate := params.JoinDate
		if joinDate.IsZero() {
			joinDate = s.now()
		}
		joinDate = joinDate.UTC()

		_, err = tx.ExecContext(ctx, queryInsertUser,
			params.UserId, params.Username, nullInt64(referrerId), tier.Bronze.String(), joinDate, joinDate)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		user, err = getUserTx(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		zap.L().Info("User registered",
			zap.Int64("user_id", user.Id),
			zap.String("username", user.Username),
			zap.Bool("referred", user.ReferrerId != nil))
	}
	return user, created, nil
}

func (s *Service) GetUserById(ctx context.Context, userId int64) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.Int64("user_id", userId))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userId, store.ErrUserNotFound)
		}
		zap.L().Error("Failed to query user by ID", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

func (s *Service) GetReferrals(ctx context.Context, userId int64) ([]models.Referral, error) {
	rows, err := s.db.QueryContext(ctx, queryGetReferrals, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query referrals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var referrals []models.Referral
	for rows.Next() {
		var r models.Referral
		if err := rows.Scan(&r.UserId, &r.Username, &r.Tier, &r.DepositAmount, &r.JoinDate); err != nil {
			return nil, fmt.Errorf("unable to scan referral row: %w", err)
		}
		r.JoinDate = r.JoinDate.UTC()
		referrals = append(referrals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral rows: %w", err)
	}
	return referrals, nil
}

func (s *Service) CountReferrals(ctx context.Context, userId int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountReferrals, userId).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count referrals: %w", err)
	}
	return count, nil
}

func getUserTx(ctx context.Context, tx *sql.Tx, userId int64) (*models.User, error) {
	user, err := scanUser(tx.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userId, store.ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userId, err)
	}
	return user, nil
}

func userExistsTx(ctx context.Context, tx *sql.Tx, userId int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, queryUserExists, userId).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", userId, err)
	}
	return true, nil
}
