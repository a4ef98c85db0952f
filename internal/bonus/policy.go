package bonus

import (
	"time"

	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/tier"

	"github.com/shopspring/decimal"
)

// Range is the inclusive daily bonus range of a tier, in USD
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

var ranges = map[tier.Level]Range{
	tier.Bronze:  {decimal.RequireFromString("0.5"), decimal.RequireFromString("1.0")},
	tier.Silver:  {decimal.RequireFromString("1.5"), decimal.RequireFromString("3.0")},
	tier.Gold:    {decimal.RequireFromString("2.5"), decimal.RequireFromString("5.0")},
	tier.Diamond: {decimal.RequireFromString("4.5"), decimal.RequireFromString("5.0")},
}

func RangeFor(level tier.Level) Range {
	if r, ok := ranges[level]; ok {
		return r
	}
	return ranges[tier.Bronze]
}

const maxStreakBoostDays = 7

var streakBoostPerDay = decimal.RequireFromString("0.03")

// ComputeAmount scales a uniform draw in [0,1) onto the range, applies the
// streak multiplier and clamps to the range maximum. Result has 3 decimals.
func ComputeAmount(r Range, streakDays int, uniform float64) decimal.Decimal {
	if uniform < 0 {
		uniform = 0
	} else if uniform > 1 {
		uniform = 1
	}
	if streakDays < 0 {
		streakDays = 0
	}

	base := r.Min.Add(r.Max.Sub(r.Min).Mul(decimal.NewFromFloat(uniform)))
	boostDays := min(streakDays, maxStreakBoostDays)
	multiplier := decimal.NewFromInt(1).Add(streakBoostPerDay.Mul(decimal.NewFromInt(int64(boostDays))))

	amount := decimal.Min(base.Mul(multiplier), r.Max)
	return amount.Round(3)
}

// NextStreak returns the streak a claim at now establishes. Days are compared
// as calendar dates in loc, so the time of day does not matter.
func NextStreak(lastClaim *time.Time, previousStreak int, now time.Time, loc *time.Location) int {
	if lastClaim == nil {
		return 1
	}
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := lastClaim.In(loc).Date()
	dayAfter := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	ny, nm, nd := now.In(loc).Date()
	ay, am, ad := dayAfter.Date()
	if ny == ay && nm == am && nd == ad {
		return previousStreak + 1
	}
	return 1
}

// Rules are the program limits the eligibility check applies
type Rules struct {
	MaxFreeBonusTotal  decimal.Decimal
	MinRequiredDeposit decimal.Decimal
	Cooldown           time.Duration
	Location           *time.Location
}

func RulesFromConfig(cfg models.RewardsConfig) Rules {
	return Rules{
		MaxFreeBonusTotal:  cfg.MaxFreeBonusTotal,
		MinRequiredDeposit: cfg.MinRequiredDeposit,
		Cooldown:           cfg.BonusCooldown,
		Location:           cfg.BonusLocation,
	}
}

// DefaultRules match the reference program: 25 USD free, 50 USD deposit to continue, 24h cooldown.
func DefaultRules() Rules {
	return Rules{
		MaxFreeBonusTotal:  decimal.NewFromInt(25),
		MinRequiredDeposit: decimal.NewFromInt(50),
		Cooldown:           24 * time.Hour,
		Location:           time.UTC,
	}
}

// Eligibility is the outcome of evaluating a claim attempt
type Eligibility struct {
	CanClaim        bool
	CooldownActive  bool
	DepositRequired bool
	// RevokeFreeBonus is set when the free cap was reached and the deposit
	// requirement is met; the caller flips eligible_for_free_bonus off.
	RevokeFreeBonus bool
	NextClaimAt     *time.Time
}

// Evaluate decides whether a claim at now is allowed. It has no side effects.
func Evaluate(claim *models.DailyClaim, depositAmount decimal.Decimal, now time.Time, rules Rules) Eligibility {
	var e Eligibility

	capReached := claim.EligibleForFreeBonus && claim.TotalClaimed.GreaterThanOrEqual(rules.MaxFreeBonusTotal)
	e.DepositRequired = capReached && depositAmount.LessThan(rules.MinRequiredDeposit)

	if claim.LastClaimDate == nil {
		e.CanClaim = !e.DepositRequired
		return e
	}

	next := claim.LastClaimDate.Add(rules.Cooldown)
	if now.Before(next) {
		e.CooldownActive = true
		e.NextClaimAt = &next
		return e
	}

	if e.DepositRequired {
		return e
	}
	e.RevokeFreeBonus = capReached
	e.CanClaim = true
	return e
}
