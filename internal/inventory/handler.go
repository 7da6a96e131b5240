// Package inventory reserves and releases product stock for order lines.
package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Store interface {
	GetStock(ctx context.Context, productID string) (*domain.StockLevel, error)
	Reserve(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error)
	Release(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error)
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

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	productID, err := api.PathUUID(r, "productId", "Product")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	stock, err := h.store.GetStock(r.Context(), productID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteOK(w, h.logger, "Stock retrieved", stock)
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	h.handleChange(w, r, "reserve", h.store.Reserve, "Stock reserved")
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	h.handleChange(w, r, "release", h.store.Release, "Stock released")
}

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request, op string,
	change func(context.Context, []domain.StockLine) ([]domain.StockLevel, error), message string,
) {
	var req domain.StockRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	levels, err := change(r.Context(), req.Items)
	if err != nil {
		h.logger.Warn("stock change rejected", "op", op, "lines", len(req.Items), "error", err)
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("stock changed", "op", op, "lines", len(levels))
	api.WriteOK(w, h.logger, message, levels)
}
