// Package withdrawal runs withdrawal requests from eligibility check to admin decision.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-ledger-bot/internal/metrics"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/rates"
	"rewards-ledger-bot/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotEnoughReferrals   = errors.New("not enough referrals to withdraw")
	ErrInvalidWalletAddress = errors.New("invalid wallet address")
	ErrBelowMinimum         = errors.New("amount below minimum withdrawal")
)

type Ledger interface {
	GetUserById(ctx context.Context, userId int64) (*models.User, error)
	CountReferrals(ctx context.Context, userId int64) (int, error)
	CreateWithdrawalRequest(ctx context.Context, params store.CreateWithdrawalParams) (*models.WithdrawalResult, error)
	GetPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, requestId int64, processedAt time.Time) (*models.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, requestId int64, processedAt time.Time) (*models.WithdrawalRequest, error)
}

// RateSource yields one price snapshot per conversion
type RateSource interface {
	Rate(ctx context.Context, asset string) rates.Rate
}

// Notifier delivers withdrawal events. Failures are logged, never returned to the caller.
type Notifier interface {
	NotifyWithdrawalRequested(ctx context.Context, req models.WithdrawalRequest) error
	NotifyWithdrawalProcessed(ctx context.Context, req models.WithdrawalRequest) error
}

type Config struct {
	MinReferrals           int
	MinWalletAddressLength int
}

func ConfigFromRewards(cfg models.RewardsConfig) Config {
	return Config{
		MinReferrals:           cfg.MinReferralsForWithdrawal,
		MinWalletAddressLength: cfg.MinWalletAddressLength,
	}
}

type Workflow struct {
	ledger   Ledger
	rates    RateSource
	assets   *models.AssetCatalogue
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

func NewWorkflow(ledger Ledger, rateSource RateSource, assets *models.AssetCatalogue, notifier Notifier, cfg Config) *Workflow {
	return &Workflow{
		ledger:   ledger,
		rates:    rateSource,
		assets:   assets,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Eligibility is the withdrawal screen for one user
type Eligibility struct {
	ReferralCount    int
	RequiredReferral int
	Earning          decimal.Decimal
	Deposit          decimal.Decimal
	Available        decimal.Decimal
}

// CheckEligibility loads balances and the referral count. It returns
// ErrNotEnoughReferrals, together with the filled Eligibility, when the user
// is below the referral minimum.
func (w *Workflow) CheckEligibility(ctx context.Context, userId int64) (*Eligibility, error) {
	user, err := w.ledger.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	count, err := w.ledger.CountReferrals(ctx, userId)
	if err != nil {
		return nil, err
	}

	e := &Eligibility{
		ReferralCount:    count,
		RequiredReferral: w.cfg.MinReferrals,
		Earning:          user.EarningAmount,
		Deposit:          user.DepositAmount,
		Available:        user.AvailableBalance(),
	}
	if count < w.cfg.MinReferrals {
		return e, fmt.Errorf("%d of %d referrals: %w", count, w.cfg.MinReferrals, ErrNotEnoughReferrals)
	}
	return e, nil
}

// Quote describes the limits of a withdrawal in one asset, priced with a single rate
type Quote struct {
	Asset            models.Asset
	Rate             rates.Rate
	Available        decimal.Decimal
	AvailableInAsset decimal.Decimal
	MinUsd           decimal.Decimal
}

func (w *Workflow) Quote(ctx context.Context, userId int64, symbol string) (*Quote, error) {
	asset, ok := w.assets.Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrUnsupportedAsset)
	}
	user, err := w.ledger.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}

	rate := w.rates.Rate(ctx, asset.Symbol)
	available := user.AvailableBalance()
	return &Quote{
		Asset:            asset,
		Rate:             rate,
		Available:        available,
		AvailableInAsset: rate.FromUsd(available),
		MinUsd:           rate.ToUsd(asset.MinWithdrawal),
	}, nil
}

func (w *Workflow) ValidateWalletAddress(address string) error {
	address = strings.TrimSpace(address)
	if len(address) < w.cfg.MinWalletAddressLength || strings.ContainsAny(address, " \t\n") {
		return fmt.Errorf("need at least %d characters without spaces: %w", w.cfg.MinWalletAddressLength, ErrInvalidWalletAddress)
	}
	return nil
}

// RequestParams is a withdrawal as entered by the user
type RequestParams struct {
	UserId        int64
	Asset         string
	Amount        decimal.Decimal
	WalletAddress string
}

// Request validates the withdrawal, converts it to USD and reserves the funds.
// Nothing is written unless every check passes.
func (w *Workflow) Request(ctx context.Context, params RequestParams) (result *models.WithdrawalResult, err error) {
	defer func() {
		metrics.RecordOperation("withdrawal_request", err,
			ErrNotEnoughReferrals, ErrInvalidWalletAddress, ErrBelowMinimum,
			models.ErrUnsupportedAsset, store.ErrInsufficientFunds, store.ErrUserNotFound)
	}()

	if _, err := w.CheckEligibility(ctx, params.UserId); err != nil {
		return nil, err
	}

	asset, ok := w.assets.Lookup(params.Asset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", params.Asset, models.ErrUnsupportedAsset)
	}
	if err := w.ValidateWalletAddress(params.WalletAddress); err != nil {
		return nil, err
	}
	if params.Amount.LessThan(asset.MinWithdrawal) {
		return nil, fmt.Errorf("minimum is %s %s: %w", asset.MinWithdrawal.String(), asset.Symbol, ErrBelowMinimum)
	}

	rate := w.rates.Rate(ctx, asset.Symbol)
	usdAmount := rate.ToUsd(params.Amount)

	result, err = w.ledger.CreateWithdrawalRequest(ctx, store.CreateWithdrawalParams{
		UserId:        params.UserId,
		Amount:        params.Amount,
		Asset:         asset.Symbol,
		UsdAmount:     usdAmount,
		WalletAddress: strings.TrimSpace(params.WalletAddress),
		CreatedAt:     w.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues(models.WithdrawalStatusPending).Inc()

	if err := w.notifier.NotifyWithdrawalRequested(ctx, result.Request); err != nil {
		zap.L().Error("Failed to notify admins of withdrawal request",
			zap.Int64("request_id", result.Request.Id),
			zap.Error(err))
	}
	return result, nil
}

// Approve completes a pending request. Funds already left the ledger at request time.
func (w *Workflow) Approve(ctx context.Context, requestId int64) (*models.WithdrawalRequest, error) {
	req, err := w.ledger.ApproveWithdrawal(ctx, requestId, w.now())
	metrics.RecordOperation("withdrawal_approve", err, store.ErrRequestNotFoundOrAlreadyProcessed)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues(models.WithdrawalStatusCompleted).Inc()
	w.notifyProcessed(ctx, *req)
	return req, nil
}

// Reject refuses a pending request and refunds its USD amount to earnings.
func (w *Workflow) Reject(ctx context.Context, requestId int64) (*models.WithdrawalRequest, error) {
	req, err := w.ledger.RejectWithdrawal(ctx, requestId, w.now())
	metrics.RecordOperation("withdrawal_reject", err, store.ErrRequestNotFoundOrAlreadyProcessed)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues(models.WithdrawalStatusRejected).Inc()
	w.notifyProcessed(ctx, *req)
	return req, nil
}

func (w *Workflow) ListPending(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	return w.ledger.GetPendingWithdrawals(ctx, limit)
}

func (w *Workflow) notifyProcessed(ctx context.Context, req models.WithdrawalRequest) {
	if err := w.notifier.NotifyWithdrawalProcessed(ctx, req); err != nil {
		zap.L().Error("Failed to notify user of withdrawal decision",
			zap.Int64("request_id", req.Id),
			zap.Int64("user_id", req.UserId),
			zap.String("status", req.Status),
			zap.Error(err))
	}
}
