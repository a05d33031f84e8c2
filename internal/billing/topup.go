package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProcessor is the opaque external payment collaborator spec §4.11
// treats as out of scope beyond its two calls.
type PaymentProcessor interface {
	// RetrievePaymentMethod confirms a payment method still exists and is
	// usable before an off-session charge is attempted.
	RetrievePaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// CreatePaymentIntent creates an off-session payment intent for amount
	// (already fee-inclusive) and returns its status: "succeeded",
	// "requires_action", or an error for outright failure.
	CreatePaymentIntent(ctx context.Context, customerID, paymentMethodID string, amount decimal.Decimal) (intentID string, status string, err error)
}

// FeeCalculator computes processor fees for a base top-up amount, per spec
// §4.11's "fee calculator" collaborator.
type FeeCalculator interface {
	Fees(base decimal.Decimal) decimal.Decimal
}

var ErrRecentAttempt = errors.New("billing: recent top-up attempt within cooldown")

const (
	topUpLockName = "auto_topup_check"
	topUpLockTTL  = 10 * time.Minute
	cooldown      = time.Hour
)

// Metrics is the narrow metrics seam the loop reports auto-topup outcomes
// through. Optional; nil disables reporting.
type Metrics interface {
	RecordAutoTopup(result string)
}

// Loop runs the auto-topup control loop (C11, spec §4.11).
type Loop struct {
	store   Store
	lock    Lock
	pay     PaymentProcessor
	fees    FeeCalculator
	log     *slog.Logger
	metrics Metrics
}

// SetMetrics injects the optional metrics recorder.
func (l *Loop) SetMetrics(m Metrics) {
	l.metrics = m
}

func (l *Loop) recordOutcome(result string) {
	if l.metrics != nil {
		l.metrics.RecordAutoTopup(result)
	}
}

// Lock is the narrow interface Loop needs from internal/queue.Lock — kept
// local so this package doesn't import internal/queue directly.
type Lock interface {
	Acquire(ctx context.Context, name string, leaseTTL time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// NewLoop builds a Loop.
func NewLoop(store Store, lock Lock, pay PaymentProcessor, fees FeeCalculator, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{store: store, lock: lock, pay: pay, fees: fees, log: log}
}

// Run executes one pass of the auto-topup loop: acquire the distributed
// lock, select low-balance orgs, and attempt a top-up for each. The lock is
// held for topUpLockTTL and released unconditionally at the end of the pass
// — a crash mid-pass self-heals once the lease expires (Design Notes).
func (l *Loop) Run(ctx context.Context) error {
	acquired, err := l.lock.Acquire(ctx, topUpLockName, topUpLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		l.log.Debug("auto-topup: lock held elsewhere, skipping pass")
		return nil
	}
	defer func() {
		if err := l.lock.Release(ctx, topUpLockName); err != nil {
			l.log.Error("auto-topup: release lock", "error", err)
		}
	}()

	orgs, err := l.store.OrgsBelowThreshold(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		if err := l.attempt(ctx, org); err != nil && !errors.Is(err, ErrRecentAttempt) {
			l.log.Error("auto-topup: attempt failed", "org", org.ID, "error", err)
		}
	}
	return nil
}

func (l *Loop) attempt(ctx context.Context, org Organization) error {
	if org.DefaultPaymentMethodID == "" {
		l.log.Warn("auto-topup: no default payment method", "org", org.ID)
		l.recordOutcome("skipped_no_payment_method")
		return nil
	}

	if last, ok, err := l.store.LatestTopUpTransaction(ctx, org.ID); err != nil {
		return err
	} else if ok && (last.Status == TxPending || last.Status == TxFailed) && time.Since(last.CreatedAt) < cooldown {
		l.recordOutcome("skipped_cooldown")
		return ErrRecentAttempt
	}

	if err := l.pay.RetrievePaymentMethod(ctx, org.ProcessorCustomerID, org.DefaultPaymentMethodID); err != nil {
		l.recordOutcome("failed")
		return l.recordFailure(ctx, org, decimal.Zero, decimal.Zero, "", err)
	}

	base := org.AutoTopUpAmount
	fees := l.fees.Fees(base)
	total := base.Add(fees)

	txID := uuid.NewString()
	tx := Transaction{
		ID: txID, OrgID: org.ID, Status: TxPending,
		BaseAmount: base, TotalFees: fees, TotalAmount: total,
	}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return err
	}

	intentID, status, err := l.pay.CreatePaymentIntent(ctx, org.ProcessorCustomerID, org.DefaultPaymentMethodID, total)
	if err != nil {
		l.recordOutcome("failed")
		return l.finish(ctx, txID, TxFailed, org, err)
	}
	switch status {
	case "succeeded", "requires_action":
		// Left pending in both cases: the webhook (outside this package's
		// scope) is the one source of truth that flips the row to succeeded
		// and credits the org, so a synchronous "succeeded" status here is
		// not acted on — only a confirmed webhook event may credit the org.
		l.log.Info("auto-topup: intent submitted, awaiting webhook confirmation", "org", org.ID, "intent", intentID, "status", status)
		l.recordOutcome("submitted")
		return nil
	default:
		l.recordOutcome("failed")
		return l.finish(ctx, txID, TxFailed, org, nil)
	}
}

func (l *Loop) finish(ctx context.Context, txID string, status TransactionStatus, org Organization, cause error) error {
	if err := l.store.UpdateTransactionStatus(ctx, txID, status); err != nil {
		return err
	}
	if cause != nil {
		l.log.Error("auto-topup: payment intent failed", "org", org.ID, "error", cause)
	}
	return nil
}

func (l *Loop) recordFailure(ctx context.Context, org Organization, base, fees decimal.Decimal, intentID string, cause error) error {
	txID := uuid.NewString()
	tx := Transaction{ID: txID, OrgID: org.ID, Status: TxFailed, IntentID: intentID, BaseAmount: base, TotalFees: fees}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return err
	}
	l.log.Error("auto-topup: payment method invalid", "org", org.ID, "error", cause)
	return nil
}
