package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// errPaymentProcessorUnconfigured is returned by noopPaymentProcessor so
// that auto-topup attempts fail loudly (and land the organization's
// transaction row as TxFailed) rather than silently pretending to charge a
// card.
var errPaymentProcessorUnconfigured = errors.New("app: no payment processor configured")

// noopPaymentProcessor satisfies billing.PaymentProcessor when no real
// processor integration is wired. The processor itself is an external
// collaborator spec §4.11 treats as out of scope for this repository; this
// stands in so internal/billing.Loop has something concrete to call until a
// deployment supplies its own implementation.
type noopPaymentProcessor struct{}

func (noopPaymentProcessor) RetrievePaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	return errPaymentProcessorUnconfigured
}

func (noopPaymentProcessor) CreatePaymentIntent(ctx context.Context, customerID, paymentMethodID string, amount decimal.Decimal) (string, string, error) {
	return "", "", errPaymentProcessorUnconfigured
}
