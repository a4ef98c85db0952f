package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessorInvoice is the payment processor's view of an invoice
type ProcessorInvoice struct {
	InvoiceId int64
	Status    string
	Asset     string
	Amount    decimal.Decimal
	PayUrl    string
	CreatedAt time.Time
	PaidAt    *time.Time
}
