package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAssetConfig(t *testing.T) {
	path := writeAssets(t, `
default_asset: btc
assets:
  - symbol: usdt
    name: Tether
    min_deposit: "10"
    min_withdrawal: "10"
  - symbol: BTC
    name: Bitcoin
    min_deposit: "0.0005"
    min_withdrawal: "0.001"
`)

	catalogue, err := LoadAssetConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "USDT"}, catalogue.Symbols())
	assert.Equal(t, "BTC", catalogue.Default().Symbol)

	btc, ok := catalogue.Lookup("btc")
	require.True(t, ok)
	assert.Equal(t, "0.001", btc.MinWithdrawal.String())

	usdt, ok := catalogue.Lookup("USDT")
	require.True(t, ok)
	assert.Equal(t, "Tether", usdt.Name)
}

func TestLoadAssetConfigMissingFileUsesDefaults(t *testing.T) {
	catalogue, err := LoadAssetConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "USDT", catalogue.Default().Symbol)
	ton, ok := catalogue.Lookup("TON")
	require.True(t, ok)
	assert.Equal(t, "50", ton.MinDeposit.String())
	assert.Equal(t, "150", ton.MinWithdrawal.String())
}

func TestLoadAssetConfigErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "assets: []\n",
		"missing symbol": "assets:\n  - name: Nothing\n",
		"bad minimum":    "assets:\n  - symbol: USDT\n    min_deposit: ten\n",
		"negative":       "assets:\n  - symbol: USDT\n    min_withdrawal: \"-1\"\n",
		"not yaml":       "assets: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadAssetConfig(writeAssets(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadAssetSymbols(t *testing.T) {
	symbols, err := LoadAssetSymbols(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH", "TON", "USDT"}, symbols)
}
