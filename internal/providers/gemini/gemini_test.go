package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestChecker(srv *httptest.Server) *Checker {
	// baseURL must include an API version segment so splitBaseURLAndVersion
	// can extract APIVersion correctly.
	return New(context.Background(), "mock-api-key", WithBaseURL(srv.URL+"/v1beta"))
}

func TestCheckerName(t *testing.T) {
	c := New(context.Background(), "key")
	if c.Name() != "gemini" {
		t.Fatalf("expected 'gemini', got %q", c.Name())
	}
}

func TestHealthCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "mock-api-key" {
			t.Errorf("missing or wrong x-goog-api-key header: %q", r.Header.Get("x-goog-api-key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	}))
	defer srv.Close()

	c := newTestChecker(srv)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHealthCheckMapsAPIError(t *testing.T) {
	errBody := map[string]any{
		"error": map[string]any{
			"code":    403,
			"message": "API key not valid",
			"status":  "PERMISSION_DENIED",
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(errBody)
	}))
	defer srv.Close()

	c := newTestChecker(srv)
	err := c.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected error for 403, got nil")
	}
}

func TestSplitBaseURLAndVersion(t *testing.T) {
	base, ver := splitBaseURLAndVersion("https://generativelanguage.googleapis.com/v1beta")
	if ver != "v1beta" {
		t.Fatalf("expected version 'v1beta', got %q", ver)
	}
	if base != "https://generativelanguage.googleapis.com/" {
		t.Fatalf("unexpected base: %q", base)
	}
}
