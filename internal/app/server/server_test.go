package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestServer() *Server {
	return New(Dependencies{
		Logger:    zap.NewNop(),
		APITokens: []string{"secret"},
		BodyLimit: 1024,
	})
}

func TestOversizedBodyIsBadRequestJSON(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 64*1024)))
	req.Header.Set("api_token", "secret")
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for over-limit body, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected JSON error body, got content type %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(body["error"], "payload too large") {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestHealthRouteBypassesAuth(t *testing.T) {
	srv := newTestServer()

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without a token, got %d", resp.StatusCode)
	}
}

func TestAPIRouteRequiresToken(t *testing.T) {
	srv := newTestServer()

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodPost, "/check_api_token", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}
}
