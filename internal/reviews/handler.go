// Package reviews lists and accepts product reviews.
package reviews

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Store interface {
	List(ctx context.Context, productID string, f domain.ReviewFilters, page api.PageRequest) ([]domain.Review, int, error)
	Create(ctx context.Context, rv *domain.Review) error
}

var SortFields = []string{"createdAt", "rating"}

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

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	productID, err := api.PathUUID(r, "id", "Product")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	page, err := api.ParsePageRequest(r.URL.Query(), SortFields...)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	q := api.NewQuery(r.URL.Query())
	filters := domain.ReviewFilters{
		Rating:       q.Int("rating"),
		MinRating:    q.Int("minRating"),
		MaxRating:    q.Int("maxRating"),
		VerifiedOnly: q.Bool("verifiedOnly"),
	}
	if err := q.Err(); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(filters); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	reviews, total, err := h.store.List(r.Context(), productID, filters, page)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WritePage(w, h.logger, "Reviews retrieved", reviews, api.NewPaginationMeta(page.Page, page.Limit, total))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	productID, err := api.PathUUID(r, "id", "Product")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req domain.ReviewCreateData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Comment = strings.TrimSpace(req.Comment)
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	review := &domain.Review{
		ProductID: productID,
		UserID:    caller.ID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	}
	if err := h.store.Create(r.Context(), review); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("review created", "review_id", review.ID, "product_id", productID, "verified", review.IsVerifiedPurchase)
	api.WriteCreated(w, h.logger, "Review created", review)
}
