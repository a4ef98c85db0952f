package store

import (
	"errors"
	"fmt"
	"testing"
)

// Compile-time checks that the interface is importable and usable.
func TestLedgerStoreInterfaceExists(t *testing.T) {
	_ = CreditParams{}
	_ = DailyClaimParams{}

	var _ LedgerStore
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	all := []error{
		ErrUserNotFound,
		ErrInsufficientFunds,
		ErrRequestNotFoundOrAlreadyProcessed,
		ErrInvoiceNotFound,
		ErrInvoiceAlreadyPaid,
		ErrClaimTooSoon,
		ErrConcurrentModification,
		ErrDuplicateTransaction,
	}
	for i, a := range all {
		wrapped := fmt.Errorf("context: %w", a)
		for j, b := range all {
			if i == j {
				if !errors.Is(wrapped, b) {
					t.Errorf("expected %v to match itself when wrapped", a)
				}
				continue
			}
			if errors.Is(wrapped, b) {
				t.Errorf("%v unexpectedly matches %v", a, b)
			}
		}
	}
}
