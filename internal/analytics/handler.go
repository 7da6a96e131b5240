// Package analytics reports sales figures to sellers and admins.
package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Store interface {
	Sales(ctx context.Context, q domain.SalesAnalyticsQuery) (*domain.SalesAnalytics, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// HandleSales reports on the caller's own products for sellers, and on the
// whole marketplace or one seller for admins.
func (h *Handler) HandleSales(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	q := api.NewQuery(r.URL.Query())
	query := domain.SalesAnalyticsQuery{
		StartDate: q.Time("startDate"),
		EndDate:   q.Time("endDate"),
		SellerID:  q.String("sellerId"),
	}
	if err := q.Err(); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if !caller.IsAdmin() {
		query.SellerID = &caller.ID
	}
	if err := validation.Struct(query); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	report, err := h.store.Sales(r.Context(), query)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("sales report generated", "user_id", caller.ID, "orders", report.TotalOrders)
	api.WriteOK(w, h.logger, "Sales analytics retrieved", report)
}
