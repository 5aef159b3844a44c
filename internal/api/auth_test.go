package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FocuswithJustin/termdoc/internal/config"
)

func TestAuthMiddleware(t *testing.T) {
	enabled := config.AuthConfig{Enabled: true, APIKey: testAPIKey}
	tests := []struct {
		name   string
		cfg    config.AuthConfig
		path   string
		key    string
		status int
	}{
		{"disabled", config.AuthConfig{}, "/documents", "", http.StatusOK},
		{"public health", enabled, "/health", "", http.StatusOK},
		{"public metrics", enabled, "/metrics", "", http.StatusOK},
		{"session checks itself", enabled, "/session", "", http.StatusOK},
		{"missing key", enabled, "/documents", "", http.StatusUnauthorized},
		{"wrong key", enabled, "/documents", "nope", http.StatusUnauthorized},
		{"valid key", enabled, "/documents", testAPIKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AuthMiddleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestCheckAPIKey(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKey: testAPIKey}
	if checkAPIKey(cfg, testAPIKey) != "" {
		t.Error("valid key rejected")
	}
	if checkAPIKey(cfg, "") != "missing API key" {
		t.Error("empty key should report missing")
	}
	if checkAPIKey(cfg, testAPIKey+"x") != "invalid API key" {
		t.Error("wrong key should report invalid")
	}
	if checkAPIKey(config.AuthConfig{}, "") != "" {
		t.Error("disabled auth should accept anything")
	}
}

func TestAPIKeyFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/session?api_key=q", nil)
	if apiKeyFrom(req) != "q" {
		t.Errorf("query fallback = %q", apiKeyFrom(req))
	}
	req.Header.Set("X-API-Key", "h")
	if apiKeyFrom(req) != "h" {
		t.Errorf("header should win, got %q", apiKeyFrom(req))
	}
}
