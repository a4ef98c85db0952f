// Package bonus implements the daily bonus: eligibility, amount, streaks and claims.
package bonus

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"rewards-ledger-bot/internal/metrics"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/tier"

	"go.uber.org/zap"
)

var (
	ErrCooldownActive  = errors.New("daily bonus cooldown active")
	ErrDepositRequired = errors.New("free bonus limit reached, deposit required")
)

// Ledger is the subset of the store the engine needs
type Ledger interface {
	GetUserById(ctx context.Context, userId int64) (*models.User, error)
	GetDailyClaim(ctx context.Context, userId int64) (*models.DailyClaim, error)
	RevokeFreeBonus(ctx context.Context, userId int64) (bool, error)
	ApplyDailyClaim(ctx context.Context, params store.DailyClaimParams) (*models.ClaimResult, error)
}

type Engine struct {
	ledger Ledger
	rules  Rules
	now    func() time.Time
	draw   func() float64
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDraw replaces the uniform [0,1) source used for bonus amounts.
func WithDraw(draw func() float64) Option {
	return func(e *Engine) { e.draw = draw }
}

func NewEngine(ledger Ledger, rules Rules, opts ...Option) *Engine {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	e := &Engine{
		ledger: ledger,
		rules:  rules,
		now:    time.Now,
		draw:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status builds the bonus screen. If the user has passed the free cap and
// meets the deposit requirement, the free-bonus flag is revoked here.
func (e *Engine) Status(ctx context.Context, userId int64) (*models.BonusStatus, error) {
	user, claim, err := e.load(ctx, userId)
	if err != nil {
		return nil, err
	}

	eligibility := Evaluate(claim, user.DepositAmount, e.now(), e.rules)
	if eligibility.RevokeFreeBonus {
		if _, err := e.ledger.RevokeFreeBonus(ctx, userId); err != nil {
			return nil, fmt.Errorf("unable to revoke free bonus: %w", err)
		}
	}

	r := RangeFor(tier.For(user.DepositAmount))
	return &models.BonusStatus{
		CanClaim:        eligibility.CanClaim,
		DepositRequired: eligibility.DepositRequired,
		Tier:            tier.For(user.DepositAmount).String(),
		BonusMin:        r.Min,
		BonusMax:        r.Max,
		TotalClaimed:    claim.TotalClaimed,
		StreakDays:      claim.StreakDays,
		NextClaimAt:     eligibility.NextClaimAt,
	}, nil
}

// Claim evaluates eligibility, computes the amount and applies the claim.
// A refused claim changes nothing.
func (e *Engine) Claim(ctx context.Context, userId int64) (result *models.ClaimResult, err error) {
	defer func() {
		metrics.RecordOperation("daily_bonus", err, ErrCooldownActive, ErrDepositRequired, store.ErrUserNotFound)
	}()

	user, claim, err := e.load(ctx, userId)
	if err != nil {
		return nil, err
	}

	now := e.now()
	eligibility := Evaluate(claim, user.DepositAmount, now, e.rules)
	switch {
	case eligibility.CooldownActive:
		return nil, fmt.Errorf("next claim at %s: %w", eligibility.NextClaimAt.Format(time.RFC3339), ErrCooldownActive)
	case eligibility.DepositRequired:
		return nil, ErrDepositRequired
	}

	streak := NextStreak(claim.LastClaimDate, claim.StreakDays, now, e.rules.Location)
	level := tier.For(user.DepositAmount)
	amount := ComputeAmount(RangeFor(level), streak, e.draw())

	result, err = e.ledger.ApplyDailyClaim(ctx, store.DailyClaimParams{
		UserId:          userId,
		Amount:          amount,
		StreakDays:      streak,
		ClaimedAt:       now,
		Cooldown:        e.rules.Cooldown,
		RevokeFreeBonus: eligibility.RevokeFreeBonus,
	})
	if errors.Is(err, store.ErrClaimTooSoon) {
		// Lost a race with a concurrent claim.
		return nil, fmt.Errorf("%w: %w", ErrCooldownActive, err)
	}
	if err != nil {
		return nil, err
	}

	metrics.BonusClaimedUsdTotal.Add(amount.InexactFloat64())
	zap.L().Info("Bonus claim applied",
		zap.Int64("user_id", userId),
		zap.String("tier", level.String()),
		zap.String("amount", amount.String()),
		zap.Int("streak_days", streak))
	return result, nil
}

func (e *Engine) load(ctx context.Context, userId int64) (*models.User, *models.DailyClaim, error) {
	user, err := e.ledger.GetUserById(ctx, userId)
	if err != nil {
		return nil, nil, err
	}
	claim, err := e.ledger.GetDailyClaim(ctx, userId)
	if err != nil {
		return nil, nil, err
	}
	return user, claim, nil
}
