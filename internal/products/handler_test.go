package products

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

type fakeStore struct {
	products    map[string]*domain.Product
	createCalls int
	lastFilters domain.ProductFilters
	lastPage    api.PageRequest
}

func newFakeStore(products ...domain.Product) *fakeStore {
	f := &fakeStore{products: map[string]*domain.Product{}}
	for i := range products {
		f.products[products[i].ID] = &products[i]
	}
	return f
}

func (f *fakeStore) List(_ context.Context, filters domain.ProductFilters, page api.PageRequest) ([]domain.Product, int, error) {
	f.lastFilters = filters
	f.lastPage = page

	var matched []domain.Product
	for _, p := range f.products {
		if filters.Status != nil && p.Status != *filters.Status {
			continue
		}
		matched = append(matched, *p)
	}
	total := len(matched)
	if page.Offset() >= total {
		return nil, total, nil
	}
	end := min(page.Offset()+page.Limit, total)
	return matched[page.Offset():end], total, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*domain.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("Product not found")
}

func (f *fakeStore) Create(_ context.Context, p *domain.Product) error {
	f.createCalls++
	p.ID = uuid.New().String()
	f.products[p.ID] = p
	return nil
}

func (f *fakeStore) Update(_ context.Context, id string, u domain.ProductUpdateData) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	return p, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return apperr.NotFound("Product not found")
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, q domain.SearchQuery, page api.PageRequest) (*domain.SearchResult, int, error) {
	products, total, err := f.List(ctx, q.Filters(), page)
	if err != nil {
		return nil, 0, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return &domain.SearchResult{Products: products}, total, nil
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  []apperr.FieldError `json:"errors"`
	Meta    *api.PaginationMeta `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rec.Body.String())
	}
	return env
}

func newTestHandler(store Store) *Handler {
	return NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	sellerA = domain.AuthenticatedUser{ID: uuid.New().String(), Role: domain.UserRoleSeller}
	sellerB = domain.AuthenticatedUser{ID: uuid.New().String(), Role: domain.UserRoleSeller}
	admin   = domain.AuthenticatedUser{ID: uuid.New().String(), Role: domain.UserRoleAdmin}
)

func as(r *http.Request, u domain.AuthenticatedUser) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), u))
}

func product(seller string, status domain.ProductStatus) domain.Product {
	return domain.Product{
		ID:       uuid.New().String(),
		SellerID: seller,
		Name:     "Desk Lamp",
		SKU:      "LAMP-" + uuid.NewString()[:8],
		Price:    decimal.RequireFromString("24.50"),
		Category: "home",
		Status:   status,
	}
}

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("negative price is rejected before persistence", func(t *testing.T) {
		store := newFakeStore()
		handler := newTestHandler(store)

		body := `{"name":"Lamp","sku":"LAMP-1","price":-5,"stockQuantity":3,"category":"home"}`
		rec := httptest.NewRecorder()
		handler.HandleCreate(rec, as(httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body)), sellerA))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		env := decode(t, rec)
		if env.Success || len(env.Data) != 0 {
			t.Errorf("failure envelope must not carry data: %s", rec.Body.String())
		}
		if len(env.Errors) != 1 || env.Errors[0].Field != "price" {
			t.Errorf("expected one error on price, got %+v", env.Errors)
		}
		if store.createCalls != 0 {
			t.Errorf("store was called %d times", store.createCalls)
		}
	})

	t.Run("valid product defaults to draft and belongs to caller", func(t *testing.T) {
		store := newFakeStore()
		handler := newTestHandler(store)

		body := `{"name":"Lamp","sku":"LAMP-1","price":"24.50","stockQuantity":3,"category":"home","tags":["desk"]}`
		rec := httptest.NewRecorder()
		handler.HandleCreate(rec, as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), sellerA))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var created domain.Product
		if err := json.Unmarshal(decode(t, rec).Data, &created); err != nil {
			t.Fatalf("failed to decode product: %v", err)
		}
		if created.SellerID != sellerA.ID {
			t.Errorf("expected seller %s, got %s", sellerA.ID, created.SellerID)
		}
		if created.Status != domain.ProductStatusDraft {
			t.Errorf("expected DRAFT, got %s", created.Status)
		}
		if !created.Price.Equal(decimal.RequireFromString("24.5")) {
			t.Errorf("expected price 24.50, got %s", created.Price)
		}
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		body := `{"name":"Lamp","sku":"LAMP-1","price":1,"category":"home","colour":"red"}`
		rec := httptest.NewRecorder()
		handler.HandleCreate(rec, as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), sellerA))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleList(t *testing.T) {
	t.Run("page past an empty catalogue", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		rec := httptest.NewRecorder()
		handler.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=3", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		env := decode(t, rec)
		if string(env.Data) != "[]" {
			t.Errorf("expected empty list, got %s", env.Data)
		}
		want := api.PaginationMeta{Page: 3, Limit: api.DefaultLimit}
		if env.Meta == nil || *env.Meta != want {
			t.Errorf("expected meta %+v, got %+v", want, env.Meta)
		}
	})

	t.Run("anonymous callers see only active products", func(t *testing.T) {
		store := newFakeStore(product(sellerA.ID, domain.ProductStatusActive), product(sellerA.ID, domain.ProductStatusDraft))
		handler := newTestHandler(store)

		rec := httptest.NewRecorder()
		handler.HandleList(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		env := decode(t, rec)
		if env.Meta == nil || env.Meta.Total != 1 {
			t.Fatalf("expected 1 visible product, got %+v", env.Meta)
		}
		if store.lastFilters.Status == nil || *store.lastFilters.Status != domain.ProductStatusActive {
			t.Errorf("expected ACTIVE filter, got %v", store.lastFilters.Status)
		}
	})

	t.Run("seller lists own drafts", func(t *testing.T) {
		store := newFakeStore(product(sellerA.ID, domain.ProductStatusDraft))
		handler := newTestHandler(store)

		rec := httptest.NewRecorder()
		url := "/?status=DRAFT&sellerId=" + sellerA.ID
		handler.HandleList(rec, as(httptest.NewRequest(http.MethodGet, url, nil), sellerA))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if env := decode(t, rec); env.Meta.Total != 1 {
			t.Errorf("expected 1 draft, got %d", env.Meta.Total)
		}
	})

	t.Run("other seller cannot filter drafts", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		rec := httptest.NewRecorder()
		url := "/?status=DRAFT&sellerId=" + sellerA.ID
		handler.HandleList(rec, as(httptest.NewRequest(http.MethodGet, url, nil), sellerB))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("collects every query error", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		rec := httptest.NewRecorder()
		handler.HandleList(rec, httptest.NewRequest(http.MethodGet, "/?minPrice=cheap&inStock=maybe&status=GONE", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		if n := len(decode(t, rec).Errors); n != 2 {
			t.Errorf("expected 2 parse errors, got %d", n)
		}
	})

	t.Run("inverted price range", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		rec := httptest.NewRecorder()
		handler.HandleList(rec, httptest.NewRequest(http.MethodGet, "/?minPrice=100&maxPrice=10", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("sort and limit are passed through", func(t *testing.T) {
		store := newFakeStore()
		handler := newTestHandler(store)

		rec := httptest.NewRecorder()
		handler.HandleList(rec, httptest.NewRequest(http.MethodGet, "/?sortBy=price&sortOrder=asc&limit=5", nil))

		want := api.PageRequest{Page: 1, Limit: 5, SortBy: "price", SortOrder: api.SortAsc}
		if store.lastPage != want {
			t.Errorf("expected %+v, got %+v", want, store.lastPage)
		}
	})
}

func TestHandler_HandleGet(t *testing.T) {
	draft := product(sellerA.ID, domain.ProductStatusDraft)
	store := newFakeStore(draft)
	handler := newTestHandler(store)

	tests := []struct {
		name   string
		path   string
		caller *domain.AuthenticatedUser
		status int
	}{
		{"owner sees draft", draft.ID, &sellerA, http.StatusOK},
		{"admin sees draft", draft.ID, &admin, http.StatusOK},
		{"other seller does not", draft.ID, &sellerB, http.StatusNotFound},
		{"anonymous does not", draft.ID, nil, http.StatusNotFound},
		{"malformed id", "not-a-uuid", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+tt.path, nil)
			req.SetPathValue("id", tt.path)
			if tt.caller != nil {
				req = as(req, *tt.caller)
			}

			rec := httptest.NewRecorder()
			handler.HandleGet(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestHandler_HandleUpdate(t *testing.T) {
	p := product(sellerA.ID, domain.ProductStatusActive)
	store := newFakeStore(p)
	handler := newTestHandler(store)

	update := func(caller domain.AuthenticatedUser, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
		req.SetPathValue("id", p.ID)
		rec := httptest.NewRecorder()
		handler.HandleUpdate(rec, as(req, caller))
		return rec
	}

	if rec := update(sellerB, `{"price":"30"}`); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner: expected 403, got %d", rec.Code)
	}
	if rec := update(sellerA, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty update: expected 400, got %d", rec.Code)
	}
	if rec := update(sellerA, `{"price":"-1"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative price: expected 400, got %d", rec.Code)
	}

	rec := update(admin, `{"price":"30.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.products[p.ID].Price.Equal(decimal.NewFromInt(30)) {
		t.Errorf("price not updated: %s", store.products[p.ID].Price)
	}
}

func TestHandler_HandleDelete(t *testing.T) {
	p := product(sellerA.ID, domain.ProductStatusActive)
	store := newFakeStore(p)
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.SetPathValue("id", p.ID)
	rec := httptest.NewRecorder()
	handler.HandleDelete(rec, as(req, sellerA))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Message != "Product deleted" {
		t.Errorf("unexpected message %q", env.Message)
	}
	if _, ok := store.products[p.ID]; ok {
		t.Error("product still stored")
	}
}

func TestHandler_HandleSearch(t *testing.T) {
	store := newFakeStore(product(sellerA.ID, domain.ProductStatusActive), product(sellerA.ID, domain.ProductStatusArchived))
	handler := newTestHandler(store)

	rec := httptest.NewRecorder()
	handler.HandleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lamp&limit=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	var result domain.SearchResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if len(result.Products) != 1 {
		t.Errorf("expected only the active product, got %d", len(result.Products))
	}
	if env.Meta == nil || env.Meta.Limit != 10 || env.Meta.TotalPages != 1 {
		t.Errorf("unexpected meta %+v", env.Meta)
	}
	if store.lastFilters.Search == nil || *store.lastFilters.Search != "lamp" {
		t.Errorf("search term not forwarded: %+v", store.lastFilters)
	}
}
