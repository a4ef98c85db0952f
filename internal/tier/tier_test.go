package tier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_Thresholds(t *testing.T) {
	cases := []struct {
		deposit string
		want    Level
	}{
		{"0", Bronze},
		{"49.99", Bronze},
		{"50", Silver},
		{"149.999", Silver},
		{"150", Gold},
		{"499.99", Gold},
		{"500", Diamond},
		{"100000", Diamond},
		{"-10", Bronze},
	}

	for _, tc := range cases {
		t.Run(tc.deposit, func(t *testing.T) {
			assert.Equal(t, tc.want, For(decimal.RequireFromString(tc.deposit)))
		})
	}
}

func TestFor_Monotonic(t *testing.T) {
	prev := For(decimal.Zero)
	for cents := int64(0); cents <= 60000; cents += 37 {
		got := For(decimal.New(cents, -2))
		require.GreaterOrEqual(t, int(got), int(prev), "tier dropped at %d cents", cents)
		prev = got
	}
}

func TestReferralBonus(t *testing.T) {
	assert.True(t, decimal.NewFromInt(5).Equal(Bronze.ReferralBonusPercent()))
	assert.True(t, decimal.NewFromInt(40).Equal(Diamond.ReferralBonusPercent()))
	assert.Equal(t, "25", Gold.ReferralBonus(decimal.NewFromInt(100)).String())
	assert.Equal(t, "7.5", Silver.ReferralBonus(decimal.NewFromInt(50)).String())
}

func TestParse(t *testing.T) {
	l, ok := Parse("gold")
	assert.True(t, ok)
	assert.Equal(t, Gold, l)

	l, ok = Parse("Platinum")
	assert.False(t, ok)
	assert.Equal(t, Bronze, l)

	assert.Equal(t, "Diamond", Diamond.String())
	assert.Equal(t, "Bronze", Level(42).String())
}
