package cryptopay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rewards-ledger-bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(models.CryptoPayConfig{
		ApiToken:      "12345:test",
		BaseUrl:       server.URL,
		Timeout:       5 * time.Second,
		PaidButtonUrl: "https://t.me/rewards_bot?start=deposit_success",
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(models.CryptoPayConfig{})
	assert.Error(t, err)
}

func TestCreateInvoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/createInvoice", r.URL.Path)
		assert.Equal(t, "12345:test", r.Header.Get("Crypto-Pay-API-Token"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "TON", payload["asset"])
		assert.Equal(t, "50.5", payload["amount"])
		assert.Equal(t, "openBot", payload["paid_btn_name"])

		_, _ = w.Write([]byte(`{"ok":true,"result":{"invoice_id":528,"status":"active","asset":"TON",
			"amount":"50.5","bot_invoice_url":"https://t.me/CryptoTestnetBot?start=IVabc",
			"created_at":"2025-03-01T10:46:05.470Z"}}`))
	})

	inv, err := client.CreateInvoice(context.Background(), "ton", decimal.RequireFromString("50.5"), "Deposit")
	require.NoError(t, err)
	assert.Equal(t, int64(528), inv.InvoiceId)
	assert.Equal(t, StatusActive, inv.Status)
	assert.Equal(t, "https://t.me/CryptoTestnetBot?start=IVabc", inv.PayUrl)
	assert.True(t, inv.Amount.Equal(decimal.RequireFromString("50.5")))
	assert.Nil(t, inv.PaidAt)
}

func TestCreateInvoice_ApiError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":400,"name":"AMOUNT_TOO_SMALL"}}`))
	})

	_, err := client.CreateInvoice(context.Background(), "USDT", decimal.NewFromInt(1), "Deposit")
	assert.ErrorIs(t, err, models.ErrExternalService)
	assert.Contains(t, err.Error(), "AMOUNT_TOO_SMALL")
}

func TestGetInvoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/getInvoices", r.URL.Path)
		assert.Equal(t, "1,2", r.URL.Query().Get("invoice_ids"))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[
			{"invoice_id":1,"status":"paid","asset":"USDT","amount":"10","created_at":"2025-03-01T10:00:00Z","paid_at":"2025-03-01T10:05:00Z"},
			{"invoice_id":2,"status":"expired","asset":"BTC","amount":"0.001","created_at":"2025-03-01T10:00:00Z"}]}}`))
	})

	invoices, err := client.GetInvoices(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, StatusPaid, invoices[0].Status)
	require.NotNil(t, invoices[0].PaidAt)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC), invoices[0].PaidAt.UTC())
	assert.Equal(t, StatusExpired, invoices[1].Status)

	inv, err := client.GetInvoice(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "BTC", inv.Asset)

	none, err := client.GetInvoices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteInvoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deleteInvoice", r.URL.Path)
		var payload map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload["invoice_id"] == 9 {
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":400,"name":"INVOICE_NOT_FOUND"}}`))
	})

	require.NoError(t, client.DeleteInvoice(context.Background(), 9))
	assert.Error(t, client.DeleteInvoice(context.Background(), 10))
}

func TestGetMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getMe", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"app_id":77,"name":"Rewards","payment_processing_bot_username":"CryptoTestnetBot"}}`))
	})

	app, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Rewards", app.Name)
	assert.Equal(t, int64(77), app.AppId)
}

func TestCall_UndecodableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := client.GetMe(context.Background())
	assert.ErrorIs(t, err, models.ErrExternalService)
}
