// Package tier maps cumulative deposits to a rank and its referral bonus rate.
package tier

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Level int

const (
	Bronze Level = iota
	Silver
	Gold
	Diamond
)

type definition struct {
	name          string
	minDeposit    decimal.Decimal
	referralBonus decimal.Decimal // percent
}

// ordered ascending by threshold
var definitions = [...]definition{
	Bronze:  {"Bronze", decimal.Zero, decimal.NewFromInt(5)},
	Silver:  {"Silver", decimal.NewFromInt(50), decimal.NewFromInt(15)},
	Gold:    {"Gold", decimal.NewFromInt(150), decimal.NewFromInt(25)},
	Diamond: {"Diamond", decimal.NewFromInt(500), decimal.NewFromInt(40)},
}

// For returns the highest tier whose threshold the deposit meets.
// Negative amounts map to Bronze.
func For(depositAmount decimal.Decimal) Level {
	for l := Diamond; l > Bronze; l-- {
		if depositAmount.GreaterThanOrEqual(definitions[l].minDeposit) {
			return l
		}
	}
	return Bronze
}

// Parse resolves a stored tier name; unknown names fall back to Bronze.
func Parse(name string) (Level, bool) {
	for l, d := range definitions {
		if strings.EqualFold(d.name, name) {
			return Level(l), true
		}
	}
	return Bronze, false
}

// All returns every tier from lowest to highest
func All() []Level {
	return []Level{Bronze, Silver, Gold, Diamond}
}

func (l Level) valid() bool {
	return l >= Bronze && l <= Diamond
}

func (l Level) String() string {
	if !l.valid() {
		return definitions[Bronze].name
	}
	return definitions[l].name
}

func (l Level) MinDeposit() decimal.Decimal {
	if !l.valid() {
		return definitions[Bronze].minDeposit
	}
	return definitions[l].minDeposit
}

// ReferralBonusPercent is the share of a referral's deposit paid to the referrer, in percent
func (l Level) ReferralBonusPercent() decimal.Decimal {
	if !l.valid() {
		return definitions[Bronze].referralBonus
	}
	return definitions[l].referralBonus
}

// ReferralBonus computes the referrer payout for a deposit of usdAmount
func (l Level) ReferralBonus(usdAmount decimal.Decimal) decimal.Decimal {
	return usdAmount.Mul(l.ReferralBonusPercent()).Div(decimal.NewFromInt(100))
}
