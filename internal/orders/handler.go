// Package orders places orders, lists them and drives their status through
// the fulfilment lifecycle.
package orders

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/messaging"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Store interface {
	Catalog(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	CheckOwnership(ctx context.Context, userID string, in domain.OrderCreateData) ([]apperr.FieldError, error)
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilters, page api.PageRequest) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, guard Guard) (*domain.Order, domain.OrderStatus, error)
}

// Publisher sends order events. A nil Publisher disables events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

var SortFields = []string{"createdAt", "total"}

var errOrderNotFound = apperr.NotFound("Order not found")

type Handler struct {
	repo      Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(repo Store, publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req domain.OrderCreateData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	fields, err := h.repo.CheckOwnership(r.Context(), caller.ID, req)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	catalog, err := h.repo.Catalog(r.Context(), ids)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	order := &domain.Order{
		OrderNumber:       NewOrderNumber(h.now()),
		UserID:            caller.ID,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentMethodID:   req.PaymentMethodID,
		Notes:             req.Notes,
	}
	if order.BillingAddressID == "" {
		order.BillingAddressID = order.ShippingAddressID
	}

	if err := Price(order, req.Items, catalog); err != nil {
		if appErr, ok := apperr.As(err); ok {
			fields = append(fields, appErr.Fields...)
		} else {
			api.WriteError(w, h.logger, err)
			return
		}
	}
	if len(fields) > 0 {
		api.WriteError(w, h.logger, apperr.Validation(fields...))
		return
	}

	if err := h.repo.Create(r.Context(), order); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.publish(r.Context(), messaging.TopicOrderCreated, order.ID, domain.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		UserEmail:   caller.Email,
		Items:       order.Items,
		Total:       order.Total,
		Timestamp:   order.CreatedAt,
	})

	h.logger.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", order.UserID, "total", order.Total.String())
	api.WriteCreated(w, h.logger, "Order created", order)
}

func (h *Handler) publish(ctx context.Context, topic, key string, event any) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, topic, key, event); err != nil {
		h.logger.Error("failed to publish event", "error", err, "topic", topic, "order_id", key)
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	id, err := api.PathUUID(r, "id", "Order")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if order.UserID != caller.ID && !caller.IsAdmin() {
		api.WriteError(w, h.logger, errOrderNotFound)
		return
	}

	api.WriteOK(w, h.logger, "Order retrieved", order)
}

func parseFilters(r *http.Request) (domain.OrderFilters, error) {
	q := api.NewQuery(r.URL.Query())
	f := domain.OrderFilters{
		UserID:    q.String("userId"),
		StartDate: q.Time("startDate"),
		EndDate:   q.Time("endDate"),
		MinTotal:  q.Decimal("minTotal"),
		MaxTotal:  q.Decimal("maxTotal"),
	}
	if s := q.String("status"); s != nil {
		status := domain.OrderStatus(*s)
		f.Status = &status
	}
	if s := q.String("paymentStatus"); s != nil {
		status := domain.PaymentStatus(*s)
		f.PaymentStatus = &status
	}
	if err := q.Err(); err != nil {
		return f, err
	}
	return f, validation.Struct(f)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
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

	if !caller.IsAdmin() {
		if filters.UserID != nil && *filters.UserID != caller.ID {
			api.WriteError(w, h.logger, apperr.Forbidden("Only admins may list other users' orders"))
			return
		}
		filters.UserID = &caller.ID
	}

	orders, total, err := h.repo.List(r.Context(), filters, page)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("orders listed", "count", len(orders), "total", total)
	api.WritePage(w, h.logger, "Orders retrieved", orders, api.NewPaginationMeta(page.Page, page.Limit, total))
}

// HandleUpdateStatus lets an admin move an order along the transition table.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathUUID(r, "id", "Order")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req domain.OrderStatusUpdate
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.changeStatus(w, r, id, req.Status, nil, "Order status updated")
}

// HandleCancel lets the buyer cancel an order that has not started processing.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	id, err := api.PathUUID(r, "id", "Order")
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	guard := func(current *domain.Order) error {
		if current.UserID != caller.ID && !caller.IsAdmin() {
			return errOrderNotFound
		}
		if current.Status != domain.OrderStatusPending && current.Status != domain.OrderStatusConfirmed {
			return apperr.Conflict("Only pending or confirmed orders can be cancelled")
		}
		return nil
	}

	h.changeStatus(w, r, id, domain.OrderStatusCancelled, guard, "Order cancelled")
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, id string, status domain.OrderStatus, guard Guard, message string) {
	order, previous, err := h.repo.UpdateStatus(r.Context(), id, status, guard)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.publish(r.Context(), messaging.TopicOrderStatusChanged, order.ID, domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		From:      previous,
		To:        order.Status,
		Timestamp: order.UpdatedAt,
	})

	h.logger.Info("order status updated", "order_id", order.ID, "from", previous, "to", order.Status)
	api.WriteOK(w, h.logger, message, order)
}
