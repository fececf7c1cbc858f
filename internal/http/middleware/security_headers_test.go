package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yava-delivery/orderhub/internal/config"
)

func TestSecurityHeaders(t *testing.T) {
	cfg := config.SecurityHeadersConfig{
		Enabled:            true,
		CSP:                "default-src 'none'",
		HSTSMaxAge:         31536000,
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		PermissionsPolicy:  "geolocation=()",
	}

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	checks := map[string]string{
		"Content-Security-Policy":   cfg.CSP,
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           cfg.FrameOptions,
		"X-Content-Type-Options":    cfg.ContentTypeOptions,
		"X-XSS-Protection":          cfg.XSSProtection,
		"Referrer-Policy":           cfg.ReferrerPolicy,
		"Permissions-Policy":        cfg.PermissionsPolicy,
	}
	for header, want := range checks {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_Disabled(t *testing.T) {
	cfg := config.SecurityHeadersConfig{
		Enabled: false,
		CSP:     "default-src 'none'",
	}

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("CSP header should not be set when disabled, got %v", got)
	}
}

func TestSecurityHeaders_EmptyValues(t *testing.T) {
	cfg := config.SecurityHeadersConfig{
		Enabled:      true,
		CSP:          "",
		HSTSMaxAge:   0,
		FrameOptions: "",
	}

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("CSP header should not be set when empty, got %v", got)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS header should not be set when max age is 0, got %v", got)
	}
}
