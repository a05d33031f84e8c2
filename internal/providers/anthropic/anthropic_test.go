package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestChecker(srv *httptest.Server) *Checker {
	return New("mock-api-key", WithBaseURL(srv.URL))
}

func TestCheckerName(t *testing.T) {
	c := New("key")
	if c.Name() != "anthropic" {
		t.Fatalf("expected 'anthropic', got %q", c.Name())
	}
}

func TestHealthCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "mock-api-key" {
			t.Errorf("missing or wrong x-api-key header: %s", r.Header.Get("x-api-key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}, "has_more": false})
	}))
	defer srv.Close()

	c := newTestChecker(srv)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHealthCheckMapsAuthError(t *testing.T) {
	errBody := map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    "authentication_error",
			"message": "invalid x-api-key",
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(errBody)
	}))
	defer srv.Close()

	c := newTestChecker(srv)
	err := c.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected error for 401, got nil")
	}
	var provErr *ProviderError
	if !asProviderError(err, &provErr) {
		t.Fatalf("expected a wrapped *ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", provErr.StatusCode)
	}
	if !strings.Contains(strings.ToLower(provErr.Message), "api-key") {
		t.Errorf("expected message to mention api-key, got %q", provErr.Message)
	}
}

func asProviderError(err error, target **ProviderError) bool {
	for err != nil {
		if pe, ok := err.(*ProviderError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
