package cryptopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePaidUpdate = `{"update_id":1,"update_type":"invoice_paid","request_date":"2025-03-01T10:05:01.000Z",
	"payload":{"invoice_id":528,"status":"paid","asset":"USDT","amount":"25","created_at":"2025-03-01T10:00:00Z","paid_at":"2025-03-01T10:05:00Z"}}`

func TestWebhookVerifier_MatchesReferenceScheme(t *testing.T) {
	token := "12345:test"
	body := []byte(samplePaidUpdate)

	key := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, key[:])
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	verifier := NewWebhookVerifier(token)
	assert.Equal(t, expected, verifier.Sign(body))
	assert.True(t, verifier.Verify(body, expected))
	assert.False(t, verifier.Verify(body, "deadbeef"))
	assert.False(t, verifier.Verify(body, "not-hex"))
	assert.False(t, NewWebhookVerifier("other").Verify(body, expected))
}

func TestWebhookVerifier_ParseUpdate(t *testing.T) {
	verifier := NewWebhookVerifier("12345:test")
	body := []byte(samplePaidUpdate)

	update, err := verifier.ParseUpdate(body, verifier.Sign(body))
	require.NoError(t, err)
	assert.Equal(t, UpdateTypeInvoicePaid, update.UpdateType)

	inv := update.Invoice()
	assert.Equal(t, int64(528), inv.InvoiceId)
	assert.Equal(t, StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)

	_, err = verifier.ParseUpdate(body, "00")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	garbage := []byte("{not json")
	_, err = verifier.ParseUpdate(garbage, verifier.Sign(garbage))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}
