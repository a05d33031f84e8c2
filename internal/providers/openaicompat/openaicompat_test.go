package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerName(t *testing.T) {
	c := New("xai", "key", "")
	if c.Name() != "xai" {
		t.Fatalf("expected 'xai', got %q", c.Name())
	}
}

func TestHealthCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mock-api-key" {
			t.Errorf("missing or wrong Authorization header: %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer srv.Close()

	c := New("groq", "mock-api-key", srv.URL)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHealthCheckMapsError(t *testing.T) {
	errBody := map[string]any{
		"error": map[string]any{
			"message": "invalid API key",
			"type":    "authentication_error",
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(errBody)
	}))
	defer srv.Close()

	c := New("deepseek", "mock-api-key", srv.URL)
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for 401, got nil")
	}
}
