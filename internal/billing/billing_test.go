package billing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDebitBatchSkipsCachedAndAPIKeysMode(t *testing.T) {
	store := &fakeStore{debits: map[string]decimal.Decimal{}}
	rows := []BillableRow{
		{OrgID: "org1", ProjectMode: "credits", Cached: false, TotalCost: decimal.NewFromFloat(0.5)},
		{OrgID: "org1", ProjectMode: "credits", Cached: true, TotalCost: decimal.NewFromFloat(10)},
		{OrgID: "org1", ProjectMode: "api-keys", Cached: false, TotalCost: decimal.NewFromFloat(10)},
		{OrgID: "org2", ProjectMode: "hybrid", Cached: false, TotalCost: decimal.NewFromFloat(1)},
	}
	if err := DebitBatch(context.Background(), store, rows); err != nil {
		t.Fatalf("DebitBatch: %v", err)
	}
	if got := store.debits["org1"]; !got.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("org1 debit = %s, want 0.5", got)
	}
	if got := store.debits["org2"]; !got.Equal(decimal.NewFromFloat(1)) {
		t.Fatalf("org2 debit = %s, want 1", got)
	}
}

type fakeStore struct {
	debits  map[string]decimal.Decimal
	orgs    []Organization
	lastTx  map[string]Transaction
	inserted []Transaction
	updated  map[string]TransactionStatus
}

func (f *fakeStore) DebitCredits(ctx context.Context, orgID string, delta decimal.Decimal) error {
	f.debits[orgID] = f.debits[orgID].Add(delta)
	return nil
}

func (f *fakeStore) OrgsBelowThreshold(ctx context.Context) ([]Organization, error) {
	return f.orgs, nil
}

func (f *fakeStore) LatestTopUpTransaction(ctx context.Context, orgID string) (Transaction, bool, error) {
	tx, ok := f.lastTx[orgID]
	return tx, ok, nil
}

func (f *fakeStore) InsertTransaction(ctx context.Context, tx Transaction) error {
	f.inserted = append(f.inserted, tx)
	return nil
}

func (f *fakeStore) UpdateTransactionStatus(ctx context.Context, txID string, status TransactionStatus) error {
	if f.updated == nil {
		f.updated = map[string]TransactionStatus{}
	}
	f.updated[txID] = status
	return nil
}

type fakeLock struct{ held map[string]bool }

func (l *fakeLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context, name string) error {
	delete(l.held, name)
	return nil
}

type fakePay struct {
	retrieveErr error
	status      string
	intentErr   error
}

func (p *fakePay) RetrievePaymentMethod(ctx context.Context, customerID, pmID string) error {
	return p.retrieveErr
}

func (p *fakePay) CreatePaymentIntent(ctx context.Context, customerID, pmID string, amount decimal.Decimal) (string, string, error) {
	if p.intentErr != nil {
		return "", "", p.intentErr
	}
	return "intent_1", p.status, nil
}

type flatFees struct{ pct float64 }

func (f flatFees) Fees(base decimal.Decimal) decimal.Decimal {
	return base.Mul(decimal.NewFromFloat(f.pct))
}

func TestLoopSkipsOrgWithoutPaymentMethod(t *testing.T) {
	store := &fakeStore{debits: map[string]decimal.Decimal{}, orgs: []Organization{{ID: "org1"}}}
	loop := NewLoop(store, &fakeLock{}, &fakePay{status: "succeeded"}, flatFees{0.03}, slog.Default())
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no transaction for org without payment method, got %d", len(store.inserted))
	}
}

func TestLoopSucceededIntentLeavesRowPendingForWebhook(t *testing.T) {
	org := Organization{ID: "org1", DefaultPaymentMethodID: "pm_1", AutoTopUpAmount: decimal.NewFromInt(20)}
	store := &fakeStore{debits: map[string]decimal.Decimal{}, orgs: []Organization{org}}
	loop := NewLoop(store, &fakeLock{}, &fakePay{status: "succeeded"}, flatFees{0.03}, slog.Default())
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// An immediate "succeeded" intent status must NOT be acted on here — only
	// the payment webhook (outside this package) may credit the org, to
	// avoid crediting before the charge is truly confirmed.
	if got := store.debits["org1"]; !got.IsZero() {
		t.Fatalf("expected no synchronous debit on immediate success, got %s", got)
	}
	if len(store.inserted) != 1 || store.inserted[0].Status != TxPending {
		t.Fatalf("expected one pending transaction inserted, got %+v", store.inserted)
	}
	if len(store.updated) != 0 {
		t.Fatalf("expected transaction status to remain pending (no update call), got %+v", store.updated)
	}
}

func TestLoopRespectsCooldownAfterRecentFailure(t *testing.T) {
	org := Organization{ID: "org1", DefaultPaymentMethodID: "pm_1", AutoTopUpAmount: decimal.NewFromInt(20)}
	store := &fakeStore{
		debits: map[string]decimal.Decimal{},
		orgs:   []Organization{org},
		lastTx: map[string]Transaction{"org1": {Status: TxFailed, CreatedAt: time.Now()}},
	}
	loop := NewLoop(store, &fakeLock{}, &fakePay{status: "succeeded"}, flatFees{0.03}, slog.Default())
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected cooldown to suppress retry, got %d transactions", len(store.inserted))
	}
}

func TestLoopSkipsWhenLockHeld(t *testing.T) {
	store := &fakeStore{debits: map[string]decimal.Decimal{}, orgs: []Organization{{ID: "org1", DefaultPaymentMethodID: "pm_1"}}}
	lock := &fakeLock{held: map[string]bool{topUpLockName: true}}
	loop := NewLoop(store, lock, &fakePay{status: "succeeded"}, flatFees{0.03}, slog.Default())
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no work while lock held, got %d", len(store.inserted))
	}
}
