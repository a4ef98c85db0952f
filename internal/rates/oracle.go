// Package rates converts between asset amounts and USD using a cached price source.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rewards-ledger-bot/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// PriceSource fetches the current USD price of one asset.
type PriceSource interface {
	UsdPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Rate is one USD price snapshot. Converting both ways through the same Rate
// guarantees both directions use the same price.
type Rate struct {
	Asset    string
	UsdPrice decimal.Decimal
	Degraded bool // true when no price was known and 1:1 was substituted
}

func (r Rate) ToUsd(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.UsdPrice)
}

func (r Rate) FromUsd(usdAmount decimal.Decimal) decimal.Decimal {
	if r.UsdPrice.IsZero() {
		return usdAmount
	}
	return usdAmount.Div(r.UsdPrice)
}

type Oracle struct {
	source PriceSource
	cache  *Cache
	group  singleflight.Group
}

func NewOracle(source PriceSource, cache *Cache) *Oracle {
	return &Oracle{source: source, cache: cache}
}

// QuoteUsd returns a fresh cached price, or fetches one. When the fetch fails
// it falls back to the last known price however old, and only returns
// ErrRateUnavailable when the asset was never priced.
func (o *Oracle) QuoteUsd(ctx context.Context, asset string) (decimal.Decimal, error) {
	symbol := strings.ToUpper(asset)

	if price, fresh, ok := o.cache.Get(symbol); ok && fresh {
		metrics.RateCacheLookupsTotal.WithLabelValues("hit").Inc()
		return price, nil
	}

	v, err, _ := o.group.Do(symbol, func() (any, error) {
		if price, fresh, ok := o.cache.Get(symbol); ok && fresh {
			return price, nil
		}
		price, err := o.source.UsdPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("non-positive price %s for %s", price.String(), symbol)
		}
		o.cache.Put(symbol, price)
		return price, nil
	})
	if err == nil {
		metrics.RateCacheLookupsTotal.WithLabelValues("refresh").Inc()
		return v.(decimal.Decimal), nil
	}

	if price, _, ok := o.cache.Get(symbol); ok {
		zap.L().Warn("Rate refresh failed, using stale price",
			zap.String("asset", symbol),
			zap.String("price", price.String()),
			zap.Error(err))
		metrics.RateCacheLookupsTotal.WithLabelValues("stale").Inc()
		return price, nil
	}

	metrics.RateCacheLookupsTotal.WithLabelValues("unavailable").Inc()
	return decimal.Zero, fmt.Errorf("%w for %s: %w", ErrRateUnavailable, symbol, err)
}

// Rate returns the price snapshot to use for one conversion pair. When no
// price is available it degrades to 1:1 rather than failing the caller.
func (o *Oracle) Rate(ctx context.Context, asset string) Rate {
	symbol := strings.ToUpper(asset)

	price, err := o.QuoteUsd(ctx, symbol)
	if err != nil {
		zap.L().Warn("No exchange rate available, using 1:1",
			zap.String("asset", symbol),
			zap.Error(err))
		return Rate{Asset: symbol, UsdPrice: decimal.NewFromInt(1), Degraded: true}
	}
	return Rate{Asset: symbol, UsdPrice: price}
}

func (o *Oracle) ToUsd(ctx context.Context, amount decimal.Decimal, asset string) decimal.Decimal {
	return o.Rate(ctx, asset).ToUsd(amount)
}

func (o *Oracle) FromUsd(ctx context.Context, usdAmount decimal.Decimal, asset string) decimal.Decimal {
	return o.Rate(ctx, asset).FromUsd(usdAmount)
}
