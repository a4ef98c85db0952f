package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSource struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  atomic.Int32
	delay  time.Duration
}

func (s *fakeSource) UsdPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.prices[symbol], nil
}

func (s *fakeSource) set(symbol, price string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price != "" {
		s.prices[symbol] = decimal.RequireFromString(price)
	}
	s.err = err
}

func newTestOracle() (*Oracle, *fakeSource, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	source := &fakeSource{prices: map[string]decimal.Decimal{}}
	return NewOracle(source, NewCache(60*time.Second, clock.Now)), source, clock
}

func TestQuoteUsd_CachesWithinTTL(t *testing.T) {
	oracle, source, clock := newTestOracle()
	source.set("BTC", "60000", nil)
	ctx := context.Background()

	price, err := oracle.QuoteUsd(ctx, "btc")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(60000)))

	source.set("BTC", "61000", nil)
	clock.Advance(59 * time.Second)
	price, err = oracle.QuoteUsd(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(60000)), "expected cached price, got %s", price)
	assert.Equal(t, int32(1), source.calls.Load())

	clock.Advance(time.Second)
	price, err = oracle.QuoteUsd(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(61000)), "expected refreshed price, got %s", price)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestQuoteUsd_StaleFallback(t *testing.T) {
	oracle, source, clock := newTestOracle()
	source.set("TON", "5.25", nil)
	ctx := context.Background()

	_, err := oracle.QuoteUsd(ctx, "TON")
	require.NoError(t, err)

	source.set("", "", errors.New("upstream down"))
	clock.Advance(24 * time.Hour)

	price, err := oracle.QuoteUsd(ctx, "TON")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("5.25")))
}

func TestQuoteUsd_Unavailable(t *testing.T) {
	oracle, source, _ := newTestOracle()
	source.set("", "", errors.New("upstream down"))

	_, err := oracle.QuoteUsd(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestQuoteUsd_RejectsNonPositivePrice(t *testing.T) {
	oracle, source, _ := newTestOracle()
	source.set("ETH", "0", nil)

	_, err := oracle.QuoteUsd(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestQuoteUsd_CollapsesConcurrentRefreshes(t *testing.T) {
	oracle, source, _ := newTestOracle()
	source.set("BTC", "60000", nil)
	source.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := oracle.QuoteUsd(context.Background(), "BTC")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, source.calls.Load(), int32(2))
}

func TestRate_DegradesToOneToOne(t *testing.T) {
	oracle, source, _ := newTestOracle()
	source.set("", "", errors.New("upstream down"))

	r := oracle.Rate(context.Background(), "usdt")
	assert.True(t, r.Degraded)
	assert.Equal(t, "USDT", r.Asset)
	assert.True(t, r.ToUsd(decimal.NewFromInt(12)).Equal(decimal.NewFromInt(12)))
	assert.True(t, oracle.FromUsd(context.Background(), decimal.NewFromInt(7), "USDT").Equal(decimal.NewFromInt(7)))
}

func TestRate_RoundTrip(t *testing.T) {
	oracle, source, _ := newTestOracle()
	source.set("ETH", "3187.4412", nil)

	r := oracle.Rate(context.Background(), "ETH")
	require.False(t, r.Degraded)

	for _, s := range []string{"0.003", "1", "12.345678", "250"} {
		x := decimal.RequireFromString(s)
		back := r.FromUsd(r.ToUsd(x))
		assert.True(t, back.Sub(x).Abs().LessThan(decimal.RequireFromString("0.000000001")),
			"round trip of %s gave %s", s, back)
	}
}
