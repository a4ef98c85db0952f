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

package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rewards-ledger-bot/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type AssetConfig struct {
	Symbol        string `yaml:"symbol"`
	Name          string `yaml:"name"`
	MinDeposit    string `yaml:"min_deposit"`
	MinWithdrawal string `yaml:"min_withdrawal"`
}

type AssetsConfig struct {
	DefaultAsset string        `yaml:"default_asset"`
	Assets       []AssetConfig `yaml:"assets"`
}

// DefaultAssets is the catalogue used when no assets file exists
func DefaultAssets() *models.AssetCatalogue {
	return models.NewAssetCatalogue([]models.Asset{
		{Symbol: "USDT", Name: "Tether", MinDeposit: decimal.NewFromInt(10), MinWithdrawal: decimal.NewFromInt(10)},
		{Symbol: "BTC", Name: "Bitcoin", MinDeposit: decimal.RequireFromString("0.0005"), MinWithdrawal: decimal.RequireFromString("0.0005")},
		{Symbol: "TON", Name: "Toncoin", MinDeposit: decimal.NewFromInt(50), MinWithdrawal: decimal.NewFromInt(150)},
		{Symbol: "ETH", Name: "Ethereum", MinDeposit: decimal.RequireFromString("0.003"), MinWithdrawal: decimal.RequireFromString("0.003")},
	}, "USDT")
}

func LoadAssetConfig(assetsFile string) (*models.AssetCatalogue, error) {
	var assetsPath string
	if filepath.IsAbs(assetsFile) {
		assetsPath = assetsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		assetsPath = filepath.Join(wd, assetsFile)
	}

	data, err := os.ReadFile(assetsPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("Assets file not found, using built-in catalogue", zap.String("file", assetsFile))
		return DefaultAssets(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", assetsFile, err)
	}
	if len(config.Assets) == 0 {
		return nil, fmt.Errorf("%s lists no assets", assetsFile)
	}

	assets := make([]models.Asset, 0, len(config.Assets))
	for i, a := range config.Assets {
		if strings.TrimSpace(a.Symbol) == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		minDeposit, err := parseMinimum(a.MinDeposit)
		if err != nil {
			return nil, fmt.Errorf("asset %s: invalid min_deposit: %w", a.Symbol, err)
		}
		minWithdrawal, err := parseMinimum(a.MinWithdrawal)
		if err != nil {
			return nil, fmt.Errorf("asset %s: invalid min_withdrawal: %w", a.Symbol, err)
		}
		name := a.Name
		if name == "" {
			name = strings.ToUpper(a.Symbol)
		}
		assets = append(assets, models.Asset{
			Symbol:        strings.TrimSpace(a.Symbol),
			Name:          name,
			MinDeposit:    minDeposit,
			MinWithdrawal: minWithdrawal,
		})
	}

	return models.NewAssetCatalogue(assets, config.DefaultAsset), nil
}

func LoadAssetSymbols(assetsFile string) ([]string, error) {
	catalogue, err := LoadAssetConfig(assetsFile)
	if err != nil {
		return nil, err
	}
	return catalogue.Symbols(), nil
}

func parseMinimum(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative minimum %s", raw)
	}
	return d, nil
}
