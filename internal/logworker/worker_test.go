package logworker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/datastore"
	"github.com/shopspring/decimal"
)

type fakeDatastore struct {
	inserted [][]datastore.Log
	failNext bool
}

func (f *fakeDatastore) InsertBatch(ctx context.Context, logs []datastore.Log) error {
	if f.failNext {
		f.failNext = false
		return errFake
	}
	f.inserted = append(f.inserted, logs)
	return nil
}

var errFake = fakeErr("insert failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

type fakeBillingStore struct {
	debits map[string]decimal.Decimal
}

func (f *fakeBillingStore) DebitCredits(ctx context.Context, orgID string, delta decimal.Decimal) error {
	if f.debits == nil {
		f.debits = map[string]decimal.Decimal{}
	}
	f.debits[orgID] = f.debits[orgID].Add(delta)
	return nil
}

func marshalLog(t *testing.T, l datastore.Log) []byte {
	t.Helper()
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// pass() itself is exercised against a real queue.Queue in integration
// paths (it needs Redis's RPOPLPUSH semantics); here we confirm the
// parse+retention+insert sequencing pass() relies on, directly.
func TestParseRetentionInsertSequence(t *testing.T) {
	ds := &fakeDatastore{}
	msg := marshalLog(t, datastore.Log{RequestID: "r1", OrgID: "org1", ProjectMode: "credits", TotalCost: 0.5})

	var l datastore.Log
	if err := json.Unmarshal(msg, &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	datastore.ApplyRetention(&l, datastore.RetentionNone)
	if l.Messages != "" || l.Content != "" || l.ToolCalls != "" {
		t.Fatal("expected retention stripping to clear message fields")
	}
	if err := ds.InsertBatch(context.Background(), []datastore.Log{l}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if len(ds.inserted) != 1 {
		t.Fatalf("expected one insert batch, got %d", len(ds.inserted))
	}
}

func TestConfigCadenceDefaultsByEnv(t *testing.T) {
	prod := Config{Env: EnvProduction}
	dev := Config{Env: EnvDevelopment}
	if prod.topUpEvery() != 120 {
		t.Fatalf("prod topUpEvery = %d, want 120", prod.topUpEvery())
	}
	if dev.topUpEvery() != 5 {
		t.Fatalf("dev topUpEvery = %d, want 5", dev.topUpEvery())
	}
	if prod.queueStatsEvery() != 60 {
		t.Fatalf("prod queueStatsEvery = %d, want 60", prod.queueStatsEvery())
	}
	if dev.queueStatsEvery() != 10 {
		t.Fatalf("dev queueStatsEvery = %d, want 10", dev.queueStatsEvery())
	}
}

func TestConfigAppliesDefaults(t *testing.T) {
	w := New(nil, &fakeDatastore{}, nil, nil, nil, Config{}, nil)
	if w.cfg.TickInterval != time.Second {
		t.Fatalf("expected default tick interval of 1s, got %v", w.cfg.TickInterval)
	}
	if w.cfg.BatchSize != 100 {
		t.Fatalf("expected default batch size of 100, got %d", w.cfg.BatchSize)
	}
	if w.cfg.ShutdownDrain != 15*time.Second {
		t.Fatalf("expected default shutdown drain of 15s, got %v", w.cfg.ShutdownDrain)
	}
}
