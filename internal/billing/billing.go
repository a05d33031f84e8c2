// Package billing implements batch credit debits (spec §4.10's "Batch
// credit debit" step) and the auto-topup control loop (C11, spec §4.11).
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Organization is the narrow view of spec §3's Organization this package
// mutates/reads.
type Organization struct {
	ID                 string
	Credits            decimal.Decimal
	AutoTopUpEnabled   bool
	AutoTopUpThreshold decimal.Decimal
	AutoTopUpAmount    decimal.Decimal
	DefaultPaymentMethodID string
	Plan               string
	ProcessorCustomerID string
}

// TransactionStatus mirrors spec §3's Transaction lifecycle.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxSucceeded TransactionStatus = "succeeded"
	TxFailed    TransactionStatus = "failed"
)

// Transaction records a top-up attempt (spec §3).
type Transaction struct {
	ID          string
	OrgID       string
	Status      TransactionStatus
	IntentID    string
	BaseAmount  decimal.Decimal
	TotalFees   decimal.Decimal
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

// Store is the persistence seam for organizations and transactions. A
// concrete implementation is wired in internal/app against the external
// datastore; this package only depends on the interface.
type Store interface {
	// DebitCredits atomically applies `organization.credits = credits -
	// delta` in a single statement — spec §5 forbids a read-modify-write
	// from application memory.
	DebitCredits(ctx context.Context, orgID string, delta decimal.Decimal) error

	// OrgsBelowThreshold returns organizations with auto-topup enabled whose
	// credits are below their configured threshold.
	OrgsBelowThreshold(ctx context.Context) ([]Organization, error)

	// LatestTopUpTransaction returns the most recent credit_topup
	// transaction for orgID, if any.
	LatestTopUpTransaction(ctx context.Context, orgID string) (Transaction, bool, error)

	// InsertTransaction inserts a new pending transaction row.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// UpdateTransactionStatus transitions a transaction to a terminal (or
	// still-pending) status.
	UpdateTransactionStatus(ctx context.Context, txID string, status TransactionStatus) error
}

// BillableRow is the subset of a log row the batch-debit step needs.
type BillableRow struct {
	OrgID        string
	ProjectMode  string // "api-keys" | "credits" | "hybrid"
	Cached       bool
	TotalCost    decimal.Decimal
}

// DebitBatch implements spec §4.10's batch credit debit: group successful
// rows by organizationId, sum cost for rows with cached=false and
// project.mode != "api-keys", decrement organization.credits in a single
// update per org.
func DebitBatch(ctx context.Context, store Store, rows []BillableRow) error {
	totals := map[string]decimal.Decimal{}
	for _, r := range rows {
		if r.Cached || r.ProjectMode == "api-keys" {
			continue
		}
		totals[r.OrgID] = totals[r.OrgID].Add(r.TotalCost)
	}
	for orgID, total := range totals {
		if total.IsZero() {
			continue
		}
		if err := store.DebitCredits(ctx, orgID, total); err != nil {
			return err
		}
	}
	return nil
}
