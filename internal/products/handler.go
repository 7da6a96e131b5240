// Package products serves the catalogue: listing, search with facets and
// seller-managed product records.
package products

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Store interface {
	List(ctx context.Context, f domain.ProductFilters, page api.PageRequest) ([]domain.Product, int, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id string, u domain.ProductUpdateData) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q domain.SearchQuery, page api.PageRequest) (*domain.SearchResult, int, error)
}

// SortFields are the accepted sortBy keys for product listings.
var SortFields = []string{"createdAt", "price", "name", "rating"}

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

func parseFilters(r *http.Request) (domain.ProductFilters, error) {
	q := api.NewQuery(r.URL.Query())
	f := domain.ProductFilters{
		Search:    q.String("search"),
		Category:  q.String("category"),
		Brand:     q.String("brand"),
		SellerID:  q.String("sellerId"),
		MinPrice:  q.Decimal("minPrice"),
		MaxPrice:  q.Decimal("maxPrice"),
		MinRating: q.Float("minRating"),
		InStock:   q.Bool("inStock"),
		Tags:      q.Strings("tags"),
	}
	if s := q.String("status"); s != nil {
		status := domain.ProductStatus(*s)
		f.Status = &status
	}
	if err := q.Err(); err != nil {
		return f, err
	}
	return f, validation.Struct(f)
}

// canSeeHidden reports whether the caller may list products that are not
// ACTIVE under filters f.
func canSeeHidden(caller *domain.AuthenticatedUser, f domain.ProductFilters) bool {
	if caller == nil {
		return false
	}
	if caller.IsAdmin() {
		return true
	}
	return caller.Role == domain.UserRoleSeller && f.SellerID != nil && *f.SellerID == caller.ID
}

func callerFrom(r *http.Request) *domain.AuthenticatedUser {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return &u
	}
	return nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := api.ParsePageRequest(r.URL.Query(), SortFields...)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	if !canSeeHidden(callerFrom(r), filters) {
		if filters.Status != nil && *filters.Status != domain.ProductStatusActive {
			api.WriteError(w, h.logger, apperr.Forbidden("Only the seller or an admin may list products that are not active"))
			return
		}
		active := domain.ProductStatusActive
		filters.Status = &active
	}

	products, total, err := h.store.List(r.Context(), filters, page)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("products listed", "count", len(products), "total", total)
	api.WritePage(w, h.logger, "Products retrieved", products, api.NewPaginationMeta(page.Page, page.Limit, total))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathUUID(r, "id", "Product")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	if product.Status != domain.ProductStatusActive {
		caller := callerFrom(r)
		if caller == nil || !product.OwnedBy(*caller) {
			api.WriteError(w, h.logger, apperr.NotFound("Product not found"))
			return
		}
	}

	api.WriteOK(w, h.logger, "Product retrieved", product)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req domain.ProductCreateData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	if req.Status == "" {
		req.Status = domain.ProductStatusDraft
	}

	product := &domain.Product{
		SellerID:       caller.ID,
		Name:           req.Name,
		Description:    req.Description,
		SKU:            req.SKU,
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		StockQuantity:  req.StockQuantity,
		Category:       req.Category,
		Brand:          req.Brand,
		Status:         req.Status,
		Images:         req.Images,
		Tags:           req.Tags,
		Specifications: req.Specifications,
		Variants:       req.Variants,
	}
	if err := h.store.Create(r.Context(), product); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "seller_id", caller.ID, "sku", product.SKU)
	api.WriteCreated(w, h.logger, "Product created", product)
}

// loadOwned fetches the product and checks the caller may manage it.
func (h *Handler) loadOwned(r *http.Request) (*domain.Product, error) {
	caller, err := auth.MustUser(r)
	if err != nil {
		return nil, err
	}
	id, err := api.PathUUID(r, "id", "Product")
	if err != nil {
		return nil, err
	}

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !product.OwnedBy(caller) {
		return nil, apperr.Forbidden("You can only manage your own products")
	}
	return product, nil
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if req.Empty() {
		api.WriteError(w, h.logger, apperr.Validation(apperr.FieldError{Field: "body", Message: "must change at least one field"}))
		return
	}

	current, err := h.loadOwned(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	product, err := h.store.Update(r.Context(), current.ID, req)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	api.WriteOK(w, h.logger, "Product updated", product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	current, err := h.loadOwned(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	if err := h.store.Delete(r.Context(), current.ID); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("product deleted", "product_id", current.ID)
	api.WriteOK(w, h.logger, "Product deleted", map[string]string{"id": current.ID})
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := api.ParsePageRequest(r.URL.Query(), SortFields...)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	q := api.NewQuery(r.URL.Query())
	query := domain.SearchQuery{
		Category:  q.String("category"),
		Brand:     q.String("brand"),
		MinPrice:  q.Decimal("minPrice"),
		MaxPrice:  q.Decimal("maxPrice"),
		MinRating: q.Float("minRating"),
	}
	if s := q.String("q"); s != nil {
		query.Query = *s
	}
	if err := q.Err(); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(query); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	result, total, err := h.store.Search(r.Context(), query, page)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("search executed", "query", query.Query, "total", total)
	resp := api.OK("Search results", *result).WithMeta(api.NewPaginationMeta(page.Page, page.Limit, total))
	if err := api.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
