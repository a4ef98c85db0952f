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

const (
	userColumns = `id, username, referrer_id, deposit_amount, earning_amount, tier, version, join_date, updated_at`

	// User queries
	queryGetUsers = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY join_date, id`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryUserExists = `
		SELECT 1 FROM users WHERE id = ?`

	queryInsertUser = `
		INSERT INTO users (id, username, referrer_id, deposit_amount, earning_amount, tier, version, join_date, updated_at)
		VALUES (?, ?, ?, '0', '0', ?, 1, ?, ?)`

	queryUpdateUserBalances = `
		UPDATE users
		SET deposit_amount = ?, earning_amount = ?, tier = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryGetReferrals = `
		SELECT id, username, tier, deposit_amount, join_date
		FROM users
		WHERE referrer_id = ?
		ORDER BY join_date, id`

	queryCountReferrals = `
		SELECT COUNT(*) FROM users WHERE referrer_id = ?`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE external_id = ? LIMIT 1`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, transaction_type, amount, deposit_after, earning_after, external_id, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_id, transaction_type, amount, deposit_after, earning_after, external_id, reference, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetTransactionAmounts = `
		SELECT amount FROM transactions WHERE user_id = ?`

	// Daily claim queries
	queryGetDailyClaim = `
		SELECT user_id, last_claim_date, total_claimed, eligible_for_free_bonus, streak_days
		FROM daily_claims
		WHERE user_id = ?`

	queryUpsertDailyClaim = `
		INSERT INTO daily_claims (user_id, last_claim_date, total_claimed, eligible_for_free_bonus, streak_days)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_claim_date = excluded.last_claim_date,
			total_claimed = excluded.total_claimed,
			eligible_for_free_bonus = excluded.eligible_for_free_bonus,
			streak_days = excluded.streak_days`

	queryRevokeFreeBonus = `
		UPDATE daily_claims SET eligible_for_free_bonus = 0
		WHERE user_id = ? AND eligible_for_free_bonus = 1`

	// Withdrawal queries
	withdrawalColumns = `id, user_id, amount, asset, usd_amount, wallet_address, status, created_at, processed_at`

	queryInsertWithdrawal = `
		INSERT INTO withdrawal_requests (user_id, amount, asset, usd_amount, wallet_address, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)`

	queryGetWithdrawal = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE id = ?`

	queryGetPendingWithdrawals = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT ?`

	queryTransitionWithdrawal = `
		UPDATE withdrawal_requests
		SET status = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	// Invoice queries
	invoiceColumns = `invoice_id, user_id, amount, asset, pay_url, status, created_at, paid_at`

	queryInsertInvoice = `
		INSERT INTO payment_invoices (invoice_id, user_id, amount, asset, pay_url, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'active', ?)`

	queryGetInvoice = `
		SELECT ` + invoiceColumns + `
		FROM payment_invoices
		WHERE invoice_id = ?`

	queryGetActiveInvoices = `
		SELECT ` + invoiceColumns + `
		FROM payment_invoices
		WHERE status = 'active'
		ORDER BY created_at, invoice_id
		LIMIT ? OFFSET ?`

	queryMarkInvoicePaid = `
		UPDATE payment_invoices
		SET status = 'paid', paid_at = ?
		WHERE invoice_id = ? AND status = ?`

	querySetInvoiceStatus = `
		UPDATE payment_invoices
		SET status = ?
		WHERE invoice_id = ? AND status = ?`
)
