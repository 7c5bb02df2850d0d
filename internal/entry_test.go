package internal

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testSession(t *testing.T, mutate func(*Config)) (*Session, http.Handler) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Persistence.Driver = "memory"
	cfg.Persistence.Path = ""
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	sess, err := NewSession(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess, newRouter(sess, cfg, "test")
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	_, h := testSession(t, nil)

	if rec := get(t, h, "/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	// The toolchain has not been initialised.
	rec := get(t, h, "/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "toolchain unavailable") {
		t.Errorf("ready body = %s", rec.Body.String())
	}
}

func TestRouterServesAPIAndMetrics(t *testing.T) {
	sess, h := testSession(t, nil)
	if _, _, err := sess.Workspace.WriteFile("src/App.jsx", "export default 1"); err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, "/api/project", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "App.jsx") {
		t.Errorf("project = %d %s", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "jstcode_http_requests_total") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestRouterAuth(t *testing.T) {
	_, h := testSession(t, func(c *Config) {
		c.Auth = AuthConfig{Mode: AuthModeToken, Token: "secret"}
	})

	if rec := get(t, h, "/api/project", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("api without token = %d", rec.Code)
	}
	if rec := get(t, h, "/mcp", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("mcp without token = %d", rec.Code)
	}
	auth := http.Header{"Authorization": []string{"Bearer secret"}}
	if rec := get(t, h, "/api/project", auth); rec.Code != http.StatusOK {
		t.Errorf("api with token = %d", rec.Code)
	}
	// Health stays open.
	if rec := get(t, h, "/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
}

func TestMCPDisabled(t *testing.T) {
	_, h := testSession(t, func(c *Config) { c.MCP.Enabled = false })
	if rec := get(t, h, "/mcp", nil); rec.Code != http.StatusNotFound {
		t.Errorf("mcp = %d, want 404", rec.Code)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(t.Context()); err == nil {
		t.Fatal("expected error without config")
	}
}
