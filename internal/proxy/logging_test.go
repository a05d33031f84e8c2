package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/costcalc"
	"github.com/llmgateway/gateway/internal/datastore"
	"github.com/llmgateway/gateway/internal/metrics"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/shopspring/decimal"
)

type fakeEnqueuer struct {
	out chan []byte
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, message []byte) error {
	f.out <- message
	return nil
}

func newTestGateway(q Enqueuer) *Gateway {
	return &Gateway{
		queue:   q,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		baseCtx: context.Background(),
		metrics: metrics.New(),
	}
}

func TestNewRequestLog_Basic(t *testing.T) {
	temp := 0.7
	body := inboundChatRequest{
		Model:       "gpt-4o",
		Temperature: &temp,
		MaxTokens:   256,
		Messages:    []inboundMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}
	start := time.Now()
	rl := newRequestLog("req-1", body, map[string]string{"x-foo": "bar"}, start)

	if rl.requestID != "req-1" {
		t.Errorf("requestID = %q", rl.requestID)
	}
	if rl.requestedModel != "gpt-4o" {
		t.Errorf("requestedModel = %q", rl.requestedModel)
	}
	if rl.temperature != 0.7 {
		t.Errorf("temperature = %v", rl.temperature)
	}
	if rl.maxTokens != 256 {
		t.Errorf("maxTokens = %d", rl.maxTokens)
	}
	if rl.customHeaders["x-foo"] != "bar" {
		t.Errorf("customHeaders = %v", rl.customHeaders)
	}
	if rl.messagesJSON == "" {
		t.Error("expected messagesJSON to be populated")
	}
}

func TestRequestLog_WithAuth(t *testing.T) {
	rl := newRequestLog("req-2", inboundChatRequest{Model: "gpt-4o"}, nil, time.Now())
	proj := Project{ID: "proj-1", OrgID: "org-1", Mode: "credits"}
	rl.withAuth("key-1", proj)

	if rl.apiKeyID != "key-1" || rl.orgID != "org-1" || rl.projectID != "proj-1" || rl.projectMode != "credits" {
		t.Errorf("unexpected fields after withAuth: %+v", rl)
	}
}

func TestGateway_Finish_EnqueuesLogRow(t *testing.T) {
	fe := &fakeEnqueuer{out: make(chan []byte, 1)}
	g := newTestGateway(fe)

	rl := newRequestLog("req-3", inboundChatRequest{Model: "gpt-4o"}, nil, time.Now())
	rl.withAuth("key-1", Project{ID: "proj-1", OrgID: "org-1", Mode: "credits"})

	out := logOutcome{
		route: router.Route{ProviderID: "openai", ProviderModelName: "gpt-4o"},
		resp: &providers.ChatResponse{
			Content:      "hello",
			FinishReason: "stop",
			Usage:        providers.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		},
		cost: costcalc.Result{
			TotalCost: decimal.NewFromFloat(0.002),
		},
		status: 200,
	}

	g.finish(context.Background(), rl, out)

	select {
	case body := <-fe.out:
		var l datastore.Log
		if err := json.Unmarshal(body, &l); err != nil {
			t.Fatalf("unmarshal enqueued log: %v", err)
		}
		if l.RequestID != "req-3" {
			t.Errorf("RequestID = %q", l.RequestID)
		}
		if l.OrgID != "org-1" || l.ProjectID != "proj-1" {
			t.Errorf("auth fields missing: %+v", l)
		}
		if l.UsedProvider != "openai" || l.UsedModel != "gpt-4o" {
			t.Errorf("route fields missing: %+v", l)
		}
		if l.Content != "hello" || l.FinishReason != "stop" {
			t.Errorf("response fields missing: %+v", l)
		}
		if l.TotalCost != 0.002 {
			t.Errorf("TotalCost = %v, want 0.002", l.TotalCost)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for enqueued log row")
	}
}

func TestGateway_Finish_CustomProviderNaming(t *testing.T) {
	fe := &fakeEnqueuer{out: make(chan []byte, 1)}
	g := newTestGateway(fe)

	rl := newRequestLog("req-4", inboundChatRequest{Model: "custom/my-proxy/gpt-4o"}, nil, time.Now())
	out := logOutcome{
		route: router.Route{
			ProviderID:         "openai",
			IsCustomProvider:   true,
			CustomProviderName: "my-proxy",
		},
	}

	g.finish(context.Background(), rl, out)

	select {
	case body := <-fe.out:
		var l datastore.Log
		if err := json.Unmarshal(body, &l); err != nil {
			t.Fatalf("unmarshal enqueued log: %v", err)
		}
		if l.UsedProvider != "my-proxy" || l.RequestedProvider != "my-proxy" {
			t.Errorf("expected custom provider name to replace provider id, got %+v", l)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for enqueued log row")
	}
}

func TestGateway_EnqueueLog_NilQueueNoop(t *testing.T) {
	g := newTestGateway(nil)
	// Should not panic when the queue is disabled.
	g.enqueueLog(datastore.Log{ID: "x"})
}
