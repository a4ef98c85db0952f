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


package api

import (
	"context"
	"fmt"
	"strings"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/tier"

	"go.uber.org/zap"
)

// RegisterUser creates the account on first contact. A referrer that does not
// exist or names the user themselves is dropped.
func (s *LedgerService) RegisterUser(ctx context.Context, userId int64, username string, referrerId *int64) (*models.RegistrationResult, error) {
	if userId <= 0 {
		return nil, fmt.Errorf("user_id must be positive, got %d", userId)
	}

	user, created, err := s.db.CreateUser(ctx, store.CreateUserParams{
		UserId:     userId,
		Username:   strings.TrimSpace(username),
		ReferrerId: referrerId,
	})
	if err != nil {
		zap.L().Error("Failed to register user", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return &models.RegistrationResult{
		User:       user,
		Created:    created,
		ReferredBy: user.ReferrerId,
	}, nil
}

// GetAccount returns balances, tier and referral rate for a user
func (s *LedgerService) GetAccount(ctx context.Context, userId int64) (*models.AccountSummary, error) {
	user, err := s.db.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	count, err := s.db.CountReferrals(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}

	return &models.AccountSummary{
		User:          *user,
		Available:     user.AvailableBalance(),
		ReferralCount: count,
		ReferralRate:  tier.For(user.DepositAmount).ReferralBonusPercent(),
	}, nil
}

func (s *LedgerService) GetReferrals(ctx context.Context, userId int64) (*models.ReferralSummary, error) {
	user, err := s.db.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	referrals, err := s.db.GetReferrals(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get referrals", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve referrals: %w", err)
	}

	level := tier.For(user.DepositAmount)
	return &models.ReferralSummary{
		UserId:       userId,
		Tier:         level.String(),
		ReferralRate: level.ReferralBonusPercent(),
		Referrals:    referrals,
	}, nil
}
