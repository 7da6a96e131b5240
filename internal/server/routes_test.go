package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

// Requests here are all rejected before any handler touches the database.
func TestRegisterRoutes_AccessControl(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokens("test-secret", time.Hour)

	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(nil, tokens, nil, logger), auth.NewMiddleware(tokens, logger))

	token := func(role domain.UserRole) string {
		tok, _, err := tokens.Issue(domain.AuthenticatedUser{ID: uuid.New().String(), Role: role})
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return tok
	}
	customer := token(domain.UserRoleCustomer)
	seller := token(domain.UserRoleSeller)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"orders need a token", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/me", "not-a-jwt", http.StatusUnauthorized},
		{"status change is admin only", http.MethodPatch, "/api/v1/orders/" + uuid.New().String() + "/status", seller, http.StatusForbidden},
		{"reservation is admin only", http.MethodPost, "/api/v1/inventory/reserve", seller, http.StatusForbidden},
		{"customers cannot sell", http.MethodPost, "/api/v1/products", customer, http.StatusForbidden},
		{"customers have no analytics", http.MethodGet, "/api/v1/analytics/sales", customer, http.StatusForbidden},
		{"bad token on public route", http.MethodGet, "/api/v1/products", "not-a-jwt", http.StatusUnauthorized},
		{"wrong method", http.MethodDelete, "/api/v1/orders", customer, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegisterRoutes_UnmatchedRequestsUseEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokens("test-secret", time.Hour)

	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(nil, tokens, nil, logger), auth.NewMiddleware(tokens, logger))
	RegisterProbes(mux, nil, http.NotFoundHandler(), logger)

	tests := []struct {
		name      string
		method    string
		path      string
		want      int
		wantAllow string
	}{
		{"unknown path", http.MethodGet, "/api/v1/nope", http.StatusNotFound, ""},
		{"root", http.MethodGet, "/", http.StatusNotFound, ""},
		{"wrong method on collection", http.MethodDelete, "/api/v1/orders", http.StatusMethodNotAllowed, "GET, POST"},
		{"wrong method on item", http.MethodPost, "/api/v1/products/42", http.StatusMethodNotAllowed, "GET, PUT, DELETE"},
		{"wrong method on probe", http.MethodPost, "/health", http.StatusMethodNotAllowed, "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Allow"); got != tt.wantAllow {
				t.Errorf("Allow = %q, want %q", got, tt.wantAllow)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("expected JSON, got %q", ct)
			}

			var env api.Response[any]
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Success || env.Message == "" {
				t.Errorf("unexpected envelope %+v", env)
			}
		})
	}
}

func TestRegisterProbes_Health(t *testing.T) {
	mux := http.NewServeMux()
	RegisterProbes(mux, nil, http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
