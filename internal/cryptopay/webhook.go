package cryptopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewards-ledger-bot/internal/models"
)

const (
	SignatureHeader       = "crypto-pay-api-signature"
	UpdateTypeInvoicePaid = "invoice_paid"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Update is a webhook delivery from the processor
type Update struct {
	UpdateId    int64     `json:"update_id"`
	UpdateType  string    `json:"update_type"`
	RequestDate time.Time `json:"request_date"`
	Payload     invoice   `json:"payload"`
}

func (u Update) Invoice() models.ProcessorInvoice {
	return u.Payload.toModel()
}

// WebhookVerifier checks update signatures: hex HMAC-SHA256 of the raw body,
// keyed with SHA-256 of the API token.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(apiToken string) *WebhookVerifier {
	secret := sha256.Sum256([]byte(apiToken))
	return &WebhookVerifier{secret: secret[:]}
}

func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// ParseUpdate verifies and decodes a webhook body.
func (v *WebhookVerifier) ParseUpdate(body []byte, signature string) (*Update, error) {
	if !v.Verify(body, signature) {
		return nil, ErrInvalidSignature
	}
	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("unable to decode webhook update: %w", err)
	}
	return &update, nil
}
