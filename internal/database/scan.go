package database

import (
	"database/sql"
	"time"

	"rewards-ledger-bot/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var referrerId sql.NullInt64
	err := row.Scan(&user.Id, &user.Username, &referrerId, &user.DepositAmount, &user.EarningAmount,
		&user.Tier, &user.Version, &user.JoinDate, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if referrerId.Valid {
		id := referrerId.Int64
		user.ReferrerId = &id
	}
	user.JoinDate = user.JoinDate.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.Id, &tx.UserId, &tx.TransactionType, &tx.Amount, &tx.DepositAfter, &tx.EarningAfter,
		&tx.ExternalId, &tx.Reference, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func scanDailyClaim(row rowScanner) (*models.DailyClaim, error) {
	var claim models.DailyClaim
	var lastClaim sql.NullTime
	err := row.Scan(&claim.UserId, &lastClaim, &claim.TotalClaimed, &claim.EligibleForFreeBonus, &claim.StreakDays)
	if err != nil {
		return nil, err
	}
	claim.LastClaimDate = nullTime(lastClaim)
	return &claim, nil
}

func scanWithdrawal(row rowScanner) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	var processedAt sql.NullTime
	err := row.Scan(&req.Id, &req.UserId, &req.Amount, &req.Asset, &req.UsdAmount, &req.WalletAddress,
		&req.Status, &req.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	req.CreatedAt = req.CreatedAt.UTC()
	req.ProcessedAt = nullTime(processedAt)
	return &req, nil
}

func scanInvoice(row rowScanner) (*models.PaymentInvoice, error) {
	var inv models.PaymentInvoice
	var paidAt sql.NullTime
	err := row.Scan(&inv.InvoiceId, &inv.UserId, &inv.Amount, &inv.Asset, &inv.PayUrl, &inv.Status,
		&inv.CreatedAt, &paidAt)
	if err != nil {
		return nil, err
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.PaidAt = nullTime(paidAt)
	return &inv, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
