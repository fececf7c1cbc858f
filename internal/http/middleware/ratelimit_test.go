package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yava-delivery/orderhub/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimit(t *testing.T) {
	cfg := RateLimitConfig{
		Requests: 2,
		Window:   time.Second,
		Logger:   testLogger(),
	}

	handler := RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != want {
			t.Errorf("request %d: got status %d, want %d", i+1, w.Code, want)
		}
	}
}

func TestNoRateLimit(t *testing.T) {
	handler := NoRateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestCreateRateLimiters_Disabled(t *testing.T) {
	limiters := CreateRateLimiters(config.RateLimitConfig{Enabled: false}, testLogger())

	handler := limiters["webhook"](http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("POST", "/v1/webhooks/stripe", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestCreateRateLimiters_Enabled(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:                  true,
		AuthRequestsPerWindow:    5,
		AuthWindowMinutes:        1,
		WebhookRequestsPerWindow: 300,
		WebhookWindowMinutes:     1,
		APIRequestsPerWindow:     120,
		APIWindowMinutes:         1,
	}

	limiters := CreateRateLimiters(cfg, testLogger())

	for _, name := range []string{"auth", "webhook", "api"} {
		if limiters[name] == nil {
			t.Errorf("%s limiter should not be nil", name)
		}
	}
}
