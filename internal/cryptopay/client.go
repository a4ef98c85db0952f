// Package cryptopay is a client for the Crypto Pay invoice API.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rewards-ledger-bot/internal/metrics"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/transport"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseUrl = "https://testnet-pay.crypt.bot/api"
	tokenHeader    = "Crypto-Pay-API-Token"
)

// Invoice statuses reported by the processor
const (
	StatusActive  = "active"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

type apiResponse struct {
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

type invoice struct {
	InvoiceId     int64           `json:"invoice_id"`
	Status        string          `json:"status"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	PayUrl        string          `json:"pay_url"`
	BotInvoiceUrl string          `json:"bot_invoice_url"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at"`
}

func (i invoice) toModel() models.ProcessorInvoice {
	payUrl := i.BotInvoiceUrl
	if payUrl == "" {
		payUrl = i.PayUrl
	}
	return models.ProcessorInvoice{
		InvoiceId: i.InvoiceId,
		Status:    i.Status,
		Asset:     i.Asset,
		Amount:    i.Amount,
		PayUrl:    payUrl,
		CreatedAt: i.CreatedAt,
		PaidAt:    i.PaidAt,
	}
}

// AppInfo identifies the app the API token belongs to
type AppInfo struct {
	AppId                        int64  `json:"app_id"`
	Name                         string `json:"name"`
	PaymentProcessingBotUsername string `json:"payment_processing_bot_username"`
}

type Client struct {
	httpClient    *http.Client
	baseUrl       string
	token         string
	paidButtonUrl string
	limiter       *rate.Limiter
}

func NewClient(cfg models.CryptoPayConfig) (*Client, error) {
	if cfg.ApiToken == "" {
		return nil, fmt.Errorf("crypto pay api token is required")
	}

	httpClient, err := transport.NewHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}

	baseUrl := strings.TrimRight(cfg.BaseUrl, "/")
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}

	return &Client{
		httpClient:    httpClient,
		baseUrl:       baseUrl,
		token:         cfg.ApiToken,
		paidButtonUrl: cfg.PaidButtonUrl,
		limiter:       rate.NewLimiter(rate.Limit(10), 5),
	}, nil
}

// CreateInvoice issues a payable invoice for amount of asset.
func (c *Client) CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string) (*models.ProcessorInvoice, error) {
	payload := map[string]string{
		"asset":          strings.ToUpper(asset),
		"amount":         amount.String(),
		"description":    description,
		"hidden_message": "Thank you for your deposit!",
	}
	if c.paidButtonUrl != "" {
		payload["paid_btn_name"] = "openBot"
		payload["paid_btn_url"] = c.paidButtonUrl
	}

	var created invoice
	if err := c.call(ctx, http.MethodPost, "createInvoice", nil, payload, &created); err != nil {
		return nil, err
	}

	result := created.toModel()
	zap.L().Info("Invoice created at processor",
		zap.Int64("invoice_id", result.InvoiceId),
		zap.String("asset", result.Asset),
		zap.String("amount", result.Amount.String()))
	return &result, nil
}

// GetInvoices fetches the processor's view of the given invoices. Unknown ids are omitted.
func (c *Client) GetInvoices(ctx context.Context, invoiceIds []int64) ([]models.ProcessorInvoice, error) {
	if len(invoiceIds) == 0 {
		return nil, nil
	}

	ids := make([]string, len(invoiceIds))
	for i, id := range invoiceIds {
		ids[i] = strconv.FormatInt(id, 10)
	}
	query := url.Values{}
	query.Set("invoice_ids", strings.Join(ids, ","))
	query.Set("count", strconv.Itoa(len(invoiceIds)))

	var result struct {
		Items []invoice `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, "getInvoices", query, nil, &result); err != nil {
		return nil, err
	}

	invoices := make([]models.ProcessorInvoice, len(result.Items))
	for i, item := range result.Items {
		invoices[i] = item.toModel()
	}
	return invoices, nil
}

// GetInvoice fetches a single invoice, returning nil when the processor does not know it.
func (c *Client) GetInvoice(ctx context.Context, invoiceId int64) (*models.ProcessorInvoice, error) {
	invoices, err := c.GetInvoices(ctx, []int64{invoiceId})
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		if inv.InvoiceId == invoiceId {
			return &inv, nil
		}
	}
	return nil, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, invoiceId int64) error {
	var deleted bool
	payload := map[string]int64{"invoice_id": invoiceId}
	if err := c.call(ctx, http.MethodPost, "deleteInvoice", nil, payload, &deleted); err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("processor refused to delete invoice %d", invoiceId)
	}
	return nil
}

// GetMe returns the app the token belongs to; it doubles as a token check.
func (c *Client) GetMe(ctx context.Context) (*AppInfo, error) {
	var app AppInfo
	if err := c.call(ctx, http.MethodGet, "getMe", nil, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.baseUrl + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("unable to encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("unable to build %s request: %w", endpoint, err)
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveExternal("cryptopay", endpoint, start)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %v", models.ErrExternalService, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: unable to read %s response: %v", models.ErrExternalService, endpoint, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s returned %d with undecodable body: %v",
			models.ErrExternalService, endpoint, resp.StatusCode, err)
	}
	if !envelope.Ok {
		name := "unknown error"
		if envelope.Error != nil {
			name = fmt.Sprintf("%d %s", envelope.Error.Code, envelope.Error.Name)
		}
		zap.L().Error("Crypto Pay request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.String("error", name))
		return fmt.Errorf("%w: %s failed: %s", models.ErrExternalService, endpoint, name)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("unable to decode %s result: %w", endpoint, err)
	}
	return nil
}
