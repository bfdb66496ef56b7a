package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	rec := performRequest(ts.router, http.MethodGet, "/health/", nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d: %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestWithCORS(t *testing.T) {
	ts := newTestServer(t, false)
	handler := WithCORS(ts.router, []string{"https://lumos.dev"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tags/", nil)
	req.Header.Set("Origin", "https://lumos.dev")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://lumos.dev" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tags/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin should not be allowed, got %q", got)
	}

	if WithCORS(ts.router, nil) != ts.router {
		t.Fatalf("no origins should leave the handler untouched")
	}
}
