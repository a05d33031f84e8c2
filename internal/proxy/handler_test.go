package proxy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/pkg/apierr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractCustomHeaders(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-LLMGateway-Trace-Id", "abc123")
	ctx.Request.Header.Set("X-Other-Header", "ignored")

	out := extractCustomHeaders(ctx)
	if out["trace-id"] != "abc123" {
		t.Errorf("expected trace-id header to be captured, got %v", out)
	}
	if _, ok := out["other-header"]; ok {
		t.Error("non-matching header should not be captured")
	}
}

func TestExtractCustomHeaders_None(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer sk-test")
	if out := extractCustomHeaders(ctx); out != nil {
		t.Errorf("expected nil map, got %v", out)
	}
}

type fakeAuthStore struct {
	keys     map[string]APIKey
	projects map[string]Project
}

func (f fakeAuthStore) ResolveAPIKey(_ context.Context, token string) (APIKey, bool, error) {
	k, ok := f.keys[token]
	return k, ok, nil
}

func (f fakeAuthStore) GetProject(_ context.Context, projectID string) (Project, bool, error) {
	p, ok := f.projects[projectID]
	return p, ok, nil
}

func newHandlerTestGateway(auth AuthStore, limiter RateLimiter) *Gateway {
	return &Gateway{
		auth:    auth,
		limiter: limiter,
		log:     testLogger(),
		baseCtx: context.Background(),
	}
}

func TestAuthenticateAndLoadProject_MissingHeader(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}

	_, _, aerr := g.authenticateAndLoadProject(ctx)
	if aerr == nil || aerr.kind != apierr.KindAuthMissing {
		t.Fatalf("expected auth_missing, got %+v", aerr)
	}
}

func TestAuthenticateAndLoadProject_MalformedHeader(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Token sk-test")

	_, _, aerr := g.authenticateAndLoadProject(ctx)
	if aerr == nil || aerr.kind != apierr.KindAuthMalformed {
		t.Fatalf("expected auth_malformed, got %+v", aerr)
	}
}

func TestAuthenticateAndLoadProject_EmptyToken(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer   ")

	_, _, aerr := g.authenticateAndLoadProject(ctx)
	if aerr == nil || aerr.kind != apierr.KindAuthMalformed {
		t.Fatalf("expected auth_malformed, got %+v", aerr)
	}
}

func TestAuthenticateAndLoadProject_UnknownToken(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer sk-unknown")

	_, _, aerr := g.authenticateAndLoadProject(ctx)
	if aerr == nil || aerr.kind != apierr.KindAuthInvalid {
		t.Fatalf("expected auth_invalid, got %+v", aerr)
	}
}

func TestAuthenticateAndLoadProject_InactiveKey(t *testing.T) {
	store := fakeAuthStore{keys: map[string]APIKey{
		"sk-test": {ID: "key-1", ProjectID: "proj-1", Active: false},
	}}
	g := newHandlerTestGateway(store, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer sk-test")

	_, _, aerr := g.authenticateAndLoadProject(ctx)
	if aerr == nil || aerr.kind != apierr.KindAuthInvalid {
		t.Fatalf("expected auth_invalid for inactive key, got %+v", aerr)
	}
}

func TestAuthenticateAndLoadProject_Success(t *testing.T) {
	store := fakeAuthStore{
		keys: map[string]APIKey{
			"sk-test": {ID: "key-1", ProjectID: "proj-1", Active: true},
		},
		projects: map[string]Project{
			"proj-1": {ID: "proj-1", OrgID: "org-1", Mode: credentials.ModeCredits},
		},
	}
	g := newHandlerTestGateway(store, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer sk-test")

	key, proj, aerr := g.authenticateAndLoadProject(ctx)
	if aerr != nil {
		t.Fatalf("unexpected error: %+v", aerr)
	}
	if key.ID != "key-1" || proj.ID != "proj-1" || proj.OrgID != "org-1" {
		t.Errorf("unexpected key/project: %+v %+v", key, proj)
	}
}

func TestHandleChatCompletions_InvalidJSON(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte("not json"))

	g.handleChatCompletions(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Errorf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusBadRequest)
	}
}

func TestHandleChatCompletions_MissingModel(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))

	g.handleChatCompletions(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Errorf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusBadRequest)
	}
}

func TestHandleChatCompletions_EmptyMessages(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(`{"model":"gpt-4o","messages":[]}`))

	g.handleChatCompletions(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Errorf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusBadRequest)
	}
}

func TestHandleChatCompletions_AuthMissing(t *testing.T) {
	g := newHandlerTestGateway(fakeAuthStore{}, nil)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))

	g.handleChatCompletions(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Errorf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusUnauthorized)
	}
}

type fakeRateLimiter struct {
	allow bool
	err   error
}

func (f fakeRateLimiter) Allow(_ context.Context) (bool, error) {
	return f.allow, f.err
}

func TestHandleChatCompletions_RateLimited(t *testing.T) {
	store := fakeAuthStore{
		keys: map[string]APIKey{
			"sk-test": {ID: "key-1", ProjectID: "proj-1", Active: true},
		},
		projects: map[string]Project{
			"proj-1": {ID: "proj-1", OrgID: "org-1", Mode: credentials.ModeCredits},
		},
	}
	g := newHandlerTestGateway(store, fakeRateLimiter{allow: false})
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer sk-test")
	ctx.Request.SetBody([]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))

	g.handleChatCompletions(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusTooManyRequests)
	}
}
