package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

func TestRequireSession(t *testing.T) {
	sessions := auth.NewSessionService("test-secret", "orderhub", time.Hour)
	user := &domain.User{ID: uuid.New(), Email: "owner@example.com"}
	businessID := uuid.New()

	token, _, err := sessions.IssueToken(user, businessID)
	if err != nil {
		t.Fatal(err)
	}

	handler := RequireSession(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if claims.BusinessID != businessID.String() {
			t.Errorf("business_id = %s, want %s", claims.BusinessID, businessID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc123", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/orders", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestClaimsFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := ClaimsFromContext(req.Context()); ok {
		t.Error("expected no claims on a fresh context")
	}
}
