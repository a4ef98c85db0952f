package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rewards-ledger-bot/internal/metrics"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/transport"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const DefaultCoinMarketCapUrl = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"

type cmcQuoteResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		Quote map[string]struct {
			Price decimal.Decimal `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

// CoinMarketCap is a PriceSource backed by the quotes/latest endpoint.
type CoinMarketCap struct {
	httpClient *http.Client
	apiUrl     string
	apiKey     string
	limiter    *rate.Limiter
}

func NewCoinMarketCap(cfg models.RatesConfig) (*CoinMarketCap, error) {
	httpClient, err := transport.NewHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}

	apiUrl := cfg.ApiUrl
	if apiUrl == "" {
		apiUrl = DefaultCoinMarketCapUrl
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &CoinMarketCap{
		httpClient: httpClient,
		apiUrl:     apiUrl,
		apiKey:     cfg.ApiKey,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}, nil
}

func (c *CoinMarketCap) UsdPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)

	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("rate limiter: %w", err)
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("convert", "USD")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiUrl+"?"+query.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveExternal("coinmarketcap", "quotes_latest", start)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: quote request failed: %v", models.ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: unable to read quote response: %v", models.ErrExternalService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: quote request returned %d: %s",
			models.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed cmcQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("%w: unable to decode quote response: %v", models.ErrExternalService, err)
	}
	if parsed.Status.ErrorCode != 0 {
		return decimal.Zero, fmt.Errorf("%w: coinmarketcap error %d: %s",
			models.ErrExternalService, parsed.Status.ErrorCode, parsed.Status.ErrorMessage)
	}

	entry, ok := parsed.Data[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote returned for %s", symbol)
	}
	usd, ok := entry.Quote["USD"]
	if !ok {
		return decimal.Zero, fmt.Errorf("no USD quote returned for %s", symbol)
	}
	return usd.Price, nil
}
