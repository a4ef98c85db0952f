package models

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is a currency accepted for deposits and withdrawals
type Asset struct {
	Symbol        string
	Name          string
	MinDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
}

// AssetCatalogue is the set of supported assets, in display order
type AssetCatalogue struct {
	assets        []Asset
	bySymbol      map[string]Asset
	defaultSymbol string
}

func NewAssetCatalogue(assets []Asset, defaultSymbol string) *AssetCatalogue {
	c := &AssetCatalogue{
		assets:        make([]Asset, 0, len(assets)),
		bySymbol:      make(map[string]Asset, len(assets)),
		defaultSymbol: strings.ToUpper(defaultSymbol),
	}
	for _, a := range assets {
		a.Symbol = strings.ToUpper(a.Symbol)
		if _, dup := c.bySymbol[a.Symbol]; dup {
			continue
		}
		c.assets = append(c.assets, a)
		c.bySymbol[a.Symbol] = a
	}
	if _, ok := c.bySymbol[c.defaultSymbol]; !ok && len(c.assets) > 0 {
		c.defaultSymbol = c.assets[0].Symbol
	}
	return c
}

func (c *AssetCatalogue) Lookup(symbol string) (Asset, bool) {
	a, ok := c.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

func (c *AssetCatalogue) All() []Asset {
	out := make([]Asset, len(c.assets))
	copy(out, c.assets)
	return out
}

func (c *AssetCatalogue) Default() Asset {
	return c.bySymbol[c.defaultSymbol]
}

// Symbols returns the supported symbols sorted alphabetically
func (c *AssetCatalogue) Symbols() []string {
	out := make([]string, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a.Symbol)
	}
	sort.Strings(out)
	return out
}
