// Package server mounts every marketplace endpoint on a ServeMux.
package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/marketplace/internal/accounts"
	"github.com/joao-fontenele/marketplace/internal/analytics"
	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/inventory"
	"github.com/joao-fontenele/marketplace/internal/orders"
	"github.com/joao-fontenele/marketplace/internal/products"
	"github.com/joao-fontenele/marketplace/internal/reviews"
	"github.com/joao-fontenele/marketplace/internal/telemetry"
)

// Handlers holds one handler per resource.
type Handlers struct {
	accounts  *accounts.Handler
	products  *products.Handler
	inventory *inventory.Handler
	orders    *orders.Handler
	reviews   *reviews.Handler
	analytics *analytics.Handler
	logger    *slog.Logger
}

// NewHandlers wires Postgres-backed handlers. publisher may be nil.
func NewHandlers(db *sql.DB, tokens *auth.Tokens, publisher orders.Publisher, logger *slog.Logger) Handlers {
	return Handlers{
		accounts:  accounts.NewHandler(accounts.NewRepository(db), tokens, logger),
		products:  products.NewHandler(products.NewRepository(db), logger),
		inventory: inventory.NewHandler(inventory.NewRepository(db), logger),
		orders:    orders.NewHandler(orders.NewOrderRepository(db), publisher, logger),
		reviews:   reviews.NewHandler(reviews.NewRepository(db), logger),
		analytics: analytics.NewHandler(analytics.NewRepository(db), logger),
		logger:    logger,
	}
}

func RegisterRoutes(mux *http.ServeMux, h Handlers, authn *auth.Middleware) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}
	sellers := []domain.UserRole{domain.UserRoleSeller, domain.UserRoleAdmin}

	route("POST /api/v1/auth/register", h.accounts.HandleRegister)
	route("POST /api/v1/auth/login", h.accounts.HandleLogin)
	route("GET /api/v1/me", authn.Require(h.accounts.HandleMe))
	route("GET /api/v1/me/addresses", authn.Require(h.accounts.HandleListAddresses))
	route("POST /api/v1/me/addresses", authn.Require(h.accounts.HandleCreateAddress))
	route("GET /api/v1/me/payment-methods", authn.Require(h.accounts.HandleListPaymentMethods))
	route("POST /api/v1/me/payment-methods", authn.Require(h.accounts.HandleCreatePaymentMethod))

	route("GET /api/v1/products", authn.Optional(h.products.HandleList))
	route("GET /api/v1/products/{id}", authn.Optional(h.products.HandleGet))
	route("POST /api/v1/products", authn.Require(h.products.HandleCreate, sellers...))
	route("PUT /api/v1/products/{id}", authn.Require(h.products.HandleUpdate, sellers...))
	route("DELETE /api/v1/products/{id}", authn.Require(h.products.HandleDelete, sellers...))
	route("GET /api/v1/search", authn.Optional(h.products.HandleSearch))

	route("GET /api/v1/products/{id}/reviews", h.reviews.HandleList)
	route("POST /api/v1/products/{id}/reviews", authn.Require(h.reviews.HandleCreate))

	route("GET /api/v1/inventory/{productId}", authn.Require(h.inventory.HandleGetStock, sellers...))
	route("POST /api/v1/inventory/reserve", authn.Require(h.inventory.HandleReserve, domain.UserRoleAdmin))
	route("POST /api/v1/inventory/release", authn.Require(h.inventory.HandleRelease, domain.UserRoleAdmin))

	route("GET /api/v1/orders", authn.Require(h.orders.HandleList))
	route("POST /api/v1/orders", authn.Require(h.orders.HandleCreate))
	route("GET /api/v1/orders/{id}", authn.Require(h.orders.HandleGet))
	route("PATCH /api/v1/orders/{id}/status", authn.Require(h.orders.HandleUpdateStatus, domain.UserRoleAdmin))
	route("POST /api/v1/orders/{id}/cancel", authn.Require(h.orders.HandleCancel))

	route("GET /api/v1/analytics/sales", authn.Require(h.analytics.HandleSales, sellers...))

	mux.HandleFunc("/", fallback(mux, h.logger))
}

var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// fallback answers requests no route matched with the JSON envelope. A path
// registered under other methods gets 405 and an Allow header.
func fallback(mux *http.ServeMux, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, method := range routeMethods {
			if method == r.Method {
				continue
			}
			alt := r.WithContext(r.Context())
			alt.Method = method
			if _, pattern := mux.Handler(alt); pattern != "" && pattern != "/" {
				allowed = append(allowed, method)
			}
		}

		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			if err := api.WriteJSON(w, http.StatusMethodNotAllowed, api.Fail("Method not allowed", nil)); err != nil {
				logger.Error("failed to encode response", "error", err)
			}
			return
		}
		api.WriteError(w, logger, apperr.NotFound("Route not found"))
	}
}

// RegisterProbes mounts /health, /ready and /metrics outside the envelope.
func RegisterProbes(mux *http.ServeMux, db *sql.DB, metrics http.Handler, logger *slog.Logger) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_ = api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Warn("readiness check failed", "error", err)
			_ = api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		_ = api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET /metrics", metrics)
}
