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

package common

import (
	"context"
	"fmt"
	"time"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id         int64
	Username   string
	ReferrerId *int64
	Tier       string
	Deposit    decimal.Decimal
	Earning    decimal.Decimal
	JoinDate   time.Time
}

func toUserInfo(u models.User) UserInfo {
	return UserInfo{
		Id:         u.Id,
		Username:   u.Username,
		ReferrerId: u.ReferrerId,
		Tier:       u.Tier,
		Deposit:    u.DepositAmount,
		Earning:    u.EarningAmount,
		JoinDate:   u.JoinDate,
	}
}

// InitializeUsers retrieves users based on an optional id filter.
// If userId is non-zero, returns that single user; otherwise all users.
func InitializeUsers(ctx context.Context, dbService store.LedgerStore, userId int64, logger *zap.Logger) ([]UserInfo, error) {
	var users []UserInfo

	if userId != 0 {
		logger.Info("Looking up user by id", zap.Int64("user_id", userId))
		user, err := dbService.GetUserById(ctx, userId)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		users = append(users, toUserInfo(*user))
	} else {
		allUsers, err := dbService.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			users = append(users, toUserInfo(u))
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
