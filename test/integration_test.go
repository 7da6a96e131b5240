//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/client"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/inventory"
	"github.com/joao-fontenele/marketplace/internal/messaging"
	"github.com/joao-fontenele/marketplace/internal/server"
	"github.com/joao-fontenele/marketplace/internal/worker"
)

type harness struct {
	t       *testing.T
	url     string
	http    *http.Client
	admin   string
	mail    *emailCapture
	mailURL string
	inv     *inventory.Repository
	logger  *slog.Logger
}

func newHarness(ctx context.Context, t *testing.T) *harness {
	t.Helper()

	db := OpenDB(ctx, t, SetupPostgres(ctx, t))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokens("integration-secret", time.Hour)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux, server.NewHandlers(db, tokens, nil, logger), auth.NewMiddleware(tokens, logger))
	apiServer := httptest.NewServer(mux)
	t.Cleanup(apiServer.Close)

	mail := &emailCapture{}
	mailMux := http.NewServeMux()
	mailMux.HandleFunc("POST /send", mail.handler)
	mailServer := httptest.NewServer(mailMux)
	t.Cleanup(mailServer.Close)

	admin, _, err := tokens.Issue(domain.AuthenticatedUser{ID: uuid.New().String(), Role: domain.UserRoleAdmin})
	require.NoError(t, err)

	return &harness{
		t:       t,
		url:     apiServer.URL,
		http:    apiServer.Client(),
		admin:   admin,
		mail:    mail,
		mailURL: mailServer.URL,
		inv:     inventory.NewRepository(db),
		logger:  logger,
	}
}

func call[T any](h *harness, method, path, token string, body any) (int, api.Response[T]) {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.url+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.http.Do(req)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()

	var env api.Response[T]
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func must[T any](h *harness, want int, method, path, token string, body any) T {
	h.t.Helper()
	status, env := call[T](h, method, path, token, body)
	require.Equal(h.t, want, status, "%s %s: %s %v", method, path, env.Message, env.Errors)
	require.NotNil(h.t, env.Data)
	return *env.Data
}

func (h *harness) register(email string, role domain.UserRole) domain.AuthResult {
	return must[domain.AuthResult](h, http.StatusCreated, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterData{
		Email: email, Password: "correct-horse", FirstName: "Test", LastName: "User", Role: role,
	})
}

func (h *harness) product(sellerToken, sku, price string, stock int, category string) domain.Product {
	return must[domain.Product](h, http.StatusCreated, http.MethodPost, "/api/v1/products", sellerToken, domain.ProductCreateData{
		Name:          "Product " + sku,
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      category,
		Brand:         "Acme",
		Status:        domain.ProductStatusActive,
		Tags:          []string{"kitchen"},
	})
}

type checkout struct {
	token     string
	email     string
	addressID string
	paymentID string
}

func (h *harness) customer(email string) checkout {
	acct := h.register(email, domain.UserRoleCustomer)
	addr := must[domain.Address](h, http.StatusCreated, http.MethodPost, "/api/v1/me/addresses", acct.Token, domain.AddressCreateData{
		Type: domain.AddressTypeShipping, FullName: "Test User", Line1: "1 Main St",
		City: "Springfield", PostalCode: "12345", Country: "us",
	})
	pm := must[domain.PaymentMethod](h, http.StatusCreated, http.MethodPost, "/api/v1/me/payment-methods", acct.Token, domain.PaymentMethodCreateData{
		Type: domain.PaymentMethodPayPal, Provider: "PayPal",
	})
	return checkout{token: acct.Token, email: acct.User.Email, addressID: addr.ID, paymentID: pm.ID}
}

func (h *harness) order(c checkout, items ...domain.OrderItemInput) domain.Order {
	return must[domain.Order](h, http.StatusCreated, http.MethodPost, "/api/v1/orders", c.token, domain.OrderCreateData{
		Items: items, ShippingAddressID: c.addressID, PaymentMethodID: c.paymentID,
	})
}

// process runs the worker against the event the orders endpoint would publish.
func (h *harness) process(ctx context.Context, order domain.Order, email string) {
	h.t.Helper()
	payload, err := json.Marshal(domain.OrderCreatedEvent{
		OrderID: order.ID, OrderNumber: order.OrderNumber, UserID: order.UserID,
		UserEmail: email, Items: order.Items, Total: order.Total, Timestamp: order.CreatedAt,
	})
	require.NoError(h.t, err)

	processor := worker.NewOrderProcessor(
		client.New(h.url, h.admin, h.http),
		client.NewMailer(h.mailURL, h.http),
		h.logger,
	)
	require.NoError(h.t, processor.Handle(ctx, payload))
}

func (h *harness) stock(productID string) domain.StockLevel {
	return must[domain.StockLevel](h, http.StatusOK, http.MethodGet, "/api/v1/inventory/"+productID, h.admin, nil)
}

type emailCapture struct {
	mu     sync.Mutex
	emails []domain.Notification
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		_ = api.WriteJSON(w, http.StatusBadRequest, api.Fail("invalid request", nil))
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, n)
	e.mu.Unlock()

	_ = api.WriteJSON(w, http.StatusOK, api.OK("Email accepted", n))
}

func (e *emailCapture) getEmails() []domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]domain.Notification, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestOrderLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := newHarness(ctx, t)

	seller := h.register("seller@example.com", domain.UserRoleSeller)
	kettle := h.product(seller.Token, "KETTLE-1", "12.50", 5, "kitchen")
	buyer := h.customer("buyer@example.com")

	order := h.order(buyer, domain.OrderItemInput{ProductID: kettle.ID, Quantity: 2})
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("25.00")), "subtotal %s", order.Subtotal)
	assert.True(t, order.ShippingCost.Equal(decimal.RequireFromString("5.00")), "shipping %s", order.ShippingCost)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("30.00")), "total %s", order.Total)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)

	h.process(ctx, order, buyer.email)

	confirmed := must[domain.Order](h, http.StatusOK, http.MethodGet, "/api/v1/orders/"+order.ID, buyer.token, nil)
	assert.Equal(t, domain.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, 2, h.stock(kettle.ID).ReservedQuantity)

	emails := h.mail.getEmails()
	require.Len(t, emails, 1)
	assert.Equal(t, "buyer@example.com", emails[0].To)
	assert.True(t, strings.HasPrefix(emails[0].Subject, "Order Confirmation"))

	// redelivery is a no-op
	h.process(ctx, order, buyer.email)
	assert.Equal(t, 2, h.stock(kettle.ID).ReservedQuantity)

	for _, status := range []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusShipped} {
		must[domain.Order](h, http.StatusOK, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", h.admin,
			domain.OrderStatusUpdate{Status: status})
	}
	level := h.stock(kettle.ID)
	assert.Equal(t, 3, level.StockQuantity)
	assert.Equal(t, 0, level.ReservedQuantity)

	status, env := call[domain.Order](h, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", buyer.token, nil)
	assert.Equal(t, http.StatusConflict, status, env.Message)

	delivered := must[domain.Order](h, http.StatusOK, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", h.admin,
		domain.OrderStatusUpdate{Status: domain.OrderStatusDelivered})
	assert.Equal(t, domain.PaymentStatusCompleted, delivered.PaymentStatus)

	review := must[domain.Review](h, http.StatusCreated, http.MethodPost, "/api/v1/products/"+kettle.ID+"/reviews", buyer.token,
		domain.ReviewCreateData{Rating: 4, Title: "Solid"})
	assert.True(t, review.IsVerifiedPurchase)

	rated := must[domain.Product](h, http.StatusOK, http.MethodGet, "/api/v1/products/"+kettle.ID, "", nil)
	require.NotNil(t, rated.Rating)
	assert.InDelta(t, 4.0, *rated.Rating, 0.001)
	assert.Equal(t, 1, rated.ReviewCount)

	status, _ = call[domain.Review](h, http.MethodPost, "/api/v1/products/"+kettle.ID+"/reviews", buyer.token,
		domain.ReviewCreateData{Rating: 5})
	assert.Equal(t, http.StatusConflict, status)

	report := must[domain.SalesAnalytics](h, http.StatusOK, http.MethodGet, "/api/v1/analytics/sales", seller.Token, nil)
	assert.True(t, report.TotalRevenue.Equal(decimal.RequireFromString("25.00")), "revenue %s", report.TotalRevenue)
	assert.Equal(t, 1, report.TotalOrders)
	assert.Equal(t, 2, report.ItemsSold)
	assert.Equal(t, 1, report.OrdersByStatus[domain.OrderStatusDelivered])
	require.Len(t, report.TopProducts, 1)
	assert.Equal(t, kettle.ID, report.TopProducts[0].ProductID)
}

func TestOrderFlowWithInsufficientStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := newHarness(ctx, t)

	seller := h.register("seller@example.com", domain.UserRoleSeller)
	plenty := h.product(seller.Token, "MUG-1", "8.00", 10, "kitchen")
	scarce := h.product(seller.Token, "TEAPOT-1", "30.00", 1, "kitchen")
	buyer := h.customer("buyer@example.com")

	order := h.order(buyer,
		domain.OrderItemInput{ProductID: plenty.ID, Quantity: 2},
		domain.OrderItemInput{ProductID: scarce.ID, Quantity: 3},
	)
	h.process(ctx, order, buyer.email)

	cancelled := must[domain.Order](h, http.StatusOK, http.MethodGet, "/api/v1/orders/"+order.ID, buyer.token, nil)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, domain.PaymentStatusFailed, cancelled.PaymentStatus)

	assert.Equal(t, 0, h.stock(plenty.ID).ReservedQuantity, "partial reservation must roll back")
	assert.Equal(t, 0, h.stock(scarce.ID).ReservedQuantity)

	emails := h.mail.getEmails()
	require.Len(t, emails, 1)
	assert.True(t, strings.HasPrefix(emails[0].Subject, "Order Cancelled"))
	assert.Contains(t, emails[0].Body, scarce.ID)
}

func TestInventoryRepository_AllOrNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := newHarness(ctx, t)

	seller := h.register("seller@example.com", domain.UserRoleSeller)
	a := h.product(seller.Token, "A-1", "1.00", 5, "misc")
	b := h.product(seller.Token, "B-1", "1.00", 1, "misc")

	_, err := h.inv.Reserve(ctx, []domain.StockLine{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	level, err := h.inv.GetStock(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, level.ReservedQuantity)

	levels, err := h.inv.Reserve(ctx, []domain.StockLine{{ProductID: a.ID, Quantity: 2}, {ProductID: a.ID, Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 5, levels[0].ReservedQuantity)

	_, err = h.inv.Release(ctx, []domain.StockLine{{ProductID: a.ID, Quantity: 6}})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = h.inv.Reserve(ctx, []domain.StockLine{{ProductID: uuid.New().String(), Quantity: 1}})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSearchAndListing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := newHarness(ctx, t)

	seller := h.register("seller@example.com", domain.UserRoleSeller)
	h.product(seller.Token, "K-1", "10.00", 1, "kitchen")
	h.product(seller.Token, "K-2", "60.00", 1, "kitchen")
	h.product(seller.Token, "G-1", "300.00", 1, "garden")
	must[domain.Product](h, http.StatusCreated, http.MethodPost, "/api/v1/products", seller.Token, domain.ProductCreateData{
		Name: "Hidden draft", SKU: "D-1", Price: decimal.NewFromInt(5), Category: "kitchen",
	})

	status, env := call[domain.SearchResult](h, http.MethodGet, "/api/v1/search?q=product&limit=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)
	assert.Len(t, env.Data.Products, 2)

	aggs := env.Data.Aggregations
	assert.Equal(t, []domain.Bucket{{Key: "kitchen", Count: 2}, {Key: "garden", Count: 1}}, aggs.Categories)
	counts := map[string]int{}
	for _, b := range aggs.PriceRanges {
		counts[b.Key] = b.Count
	}
	assert.Equal(t, map[string]int{"0-25": 1, "25-50": 0, "50-100": 1, "100-250": 0, "250+": 1}, counts)

	status, list := call[[]domain.Product](h, http.MethodGet, "/api/v1/products?category=kitchen&sortBy=price&sortOrder=desc", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, *list.Data, 2)
	assert.Equal(t, "K-2", (*list.Data)[0].SKU)

	status, list = call[[]domain.Product](h, http.MethodGet, "/api/v1/products?page=9", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, *list.Data)
	assert.Equal(t, 9, list.Meta.Page)

	status, _ = call[domain.Product](h, http.MethodPost, "/api/v1/products", seller.Token, domain.ProductCreateData{
		Name: "Duplicate", SKU: "K-1", Price: decimal.NewFromInt(1), Category: "kitchen",
	})
	assert.Equal(t, http.StatusConflict, status)
}

func TestKafkaOrderEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := SetupKafka(ctx, t)

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	event := domain.OrderCreatedEvent{OrderID: uuid.New().String(), OrderNumber: "ORD-20260101-00000001"}
	require.NoError(t, producer.Publish(ctx, messaging.TopicOrderCreated, event.OrderID, event))

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "integration-test",
		messaging.WithStartOffset(kafka.FirstOffset),
		messaging.WithRetry(3, 10*time.Millisecond),
	)
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	var got domain.OrderCreatedEvent
	attempts := 0
	err := consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		if err := json.Unmarshal(payload, &got); err != nil {
			return err
		}
		stop()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, event.OrderID, got.OrderID)
	assert.Equal(t, 2, attempts)
}

func TestConcurrentReviewsKeepRatingConsistent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := newHarness(ctx, t)

	seller := h.register("seller@example.com", domain.UserRoleSeller)
	kettle := h.product(seller.Token, "KTL-1", "20.00", 5, "kitchen")

	const reviewers = 8
	tokens := make([]string, reviewers)
	for i := range tokens {
		tokens[i] = h.register(fmt.Sprintf("reviewer%d@example.com", i), domain.UserRoleCustomer).Token
	}

	body, err := json.Marshal(domain.ReviewCreateData{Rating: 5})
	require.NoError(t, err)
	low, err := json.Marshal(domain.ReviewCreateData{Rating: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	statuses := make([]int, reviewers)
	for i, token := range tokens {
		payload := body
		if i%2 == 1 {
			payload = low
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url+"/api/v1/products/"+kettle.ID+"/reviews", bytes.NewReader(payload))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := h.http.Do(req)
			if err != nil {
				return
			}
			_ = resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	for i, status := range statuses {
		assert.Equal(t, http.StatusCreated, status, "reviewer %d", i)
	}

	rated := must[domain.Product](h, http.StatusOK, http.MethodGet, "/api/v1/products/"+kettle.ID, "", nil)
	assert.Equal(t, reviewers, rated.ReviewCount)
	require.NotNil(t, rated.Rating)
	assert.InDelta(t, 3.0, *rated.Rating, 0.001)
}

func TestOutOfRangeInputIsRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := newHarness(ctx, t)

	seller := h.register("seller@example.com", domain.UserRoleSeller)
	h.product(seller.Token, "KTL-1", "20.00", 5, "kitchen")

	status, env := call[[]domain.Product](h, http.MethodGet, "/api/v1/products?page=9223372036854775807&limit=100", "", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	if env.Data != nil {
		assert.Empty(t, *env.Data)
	}
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)
	assert.False(t, env.Meta.HasNext)

	status, env2 := call[domain.Product](h, http.MethodPost, "/api/v1/products", seller.Token, domain.ProductCreateData{
		Name: "Too much", SKU: "BIG-1", Price: decimal.RequireFromString("10000000000"),
		StockQuantity: 1, Category: "kitchen",
	})
	assert.Equal(t, http.StatusBadRequest, status, env2.Message)

	status, _ = call[domain.Product](h, http.MethodPost, "/api/v1/products", seller.Token, domain.ProductCreateData{
		Name: "Too many", SKU: "BIG-2", Price: decimal.RequireFromString("1.00"),
		StockQuantity: 2147483648, Category: "kitchen",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call[any](h, http.MethodGet, "/api/v1/no-such-route", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
