// Package worker turns order.created events into stock reservations and
// order confirmations.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

// API is the part of the marketplace API the processor drives.
type API interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ReserveStock(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error)
	ReleaseStock(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type Mailer interface {
	Send(ctx context.Context, n domain.Notification) error
}

type OrderProcessor struct {
	api    API
	mailer Mailer
	logger *slog.Logger
}

func NewOrderProcessor(api API, mailer Mailer, logger *slog.Logger) *OrderProcessor {
	return &OrderProcessor{
		api:    api,
		mailer: mailer,
		logger: logger,
	}
}

// Handle reserves stock for a new order and confirms it, or cancels it when
// stock is short. A returned error leaves the message uncommitted.
//
// Only PENDING orders are processed, so a redelivered event never reserves
// twice.
func (p *OrderProcessor) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.logger.Error("dropping malformed order created event", "error", err)
		return nil
	}

	logger := p.logger.With("order_id", event.OrderID, "order_number", event.OrderNumber)
	logger.Info("processing order created event", "user_id", event.UserID)

	order, err := p.api.GetOrder(ctx, event.OrderID)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.Warn("order no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order.Status != domain.OrderStatusPending {
		logger.Info("order already processed", "status", order.Status)
		return nil
	}

	lines := stockLines(event.Items)
	if _, err := p.api.ReserveStock(ctx, lines); err != nil {
		if !errors.Is(err, apperr.ErrConflict) && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("reserve stock: %w", err)
		}
		logger.Warn("insufficient stock", "error", err)
		return p.cancel(ctx, logger, event, err)
	}

	if _, err := p.api.UpdateOrderStatus(ctx, event.OrderID, domain.OrderStatusConfirmed); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			p.release(ctx, logger, lines)
			logger.Info("order changed while reserving, stock released", "error", err)
			return nil
		}
		confirmed, checkErr := p.confirmLanded(ctx, logger, event.OrderID, lines)
		if !confirmed {
			if checkErr != nil {
				return fmt.Errorf("confirm order: %w", errors.Join(err, checkErr))
			}
			return fmt.Errorf("confirm order: %w", err)
		}
		logger.Warn("confirm reply lost but order is confirmed", "error", err)
	}

	p.notify(ctx, logger, event,
		"Order Confirmation: "+event.OrderNumber,
		fmt.Sprintf("Your order %s has been confirmed with %d items. Total: %s.", event.OrderNumber, len(event.Items), event.Total.StringFixed(2)),
	)

	logger.Info("order confirmed")
	return nil
}

func (p *OrderProcessor) cancel(ctx context.Context, logger *slog.Logger, event domain.OrderCreatedEvent, cause error) error {
	_, err := p.api.UpdateOrderStatus(ctx, event.OrderID, domain.OrderStatusCancelled)
	if err != nil && !errors.Is(err, apperr.ErrConflict) {
		return fmt.Errorf("cancel order: %w", err)
	}

	reason := "some items are out of stock"
	if e, ok := apperr.As(cause); ok {
		reason = e.Message
	}
	p.notify(ctx, logger, event,
		"Order Cancelled: "+event.OrderNumber,
		fmt.Sprintf("Your order %s has been cancelled: %s. You will not be charged.", event.OrderNumber, reason),
	)

	logger.Info("order cancelled due to insufficient stock")
	return nil
}

// confirmLanded re-reads the order after a failed confirm whose outcome is
// unknown. Stock is released only when the order is known not to be
// confirmed; when the order cannot be read the reservation is kept.
func (p *OrderProcessor) confirmLanded(ctx context.Context, logger *slog.Logger, orderID string, lines []domain.StockLine) (bool, error) {
	order, err := p.api.GetOrder(ctx, orderID)
	if err != nil {
		logger.Error("confirm outcome unknown, keeping reservation", "error", err)
		return false, fmt.Errorf("reload order: %w", err)
	}

	switch order.Status {
	case domain.OrderStatusPending, domain.OrderStatusCancelled:
		p.release(ctx, logger, lines)
		return false, nil
	}
	return true, nil
}

func (p *OrderProcessor) release(ctx context.Context, logger *slog.Logger, lines []domain.StockLine) {
	if _, err := p.api.ReleaseStock(ctx, lines); err != nil {
		logger.Error("failed to release stock", "error", err)
	}
}

// notify is best effort; a lost email does not undo the order change.
func (p *OrderProcessor) notify(ctx context.Context, logger *slog.Logger, event domain.OrderCreatedEvent, subject, body string) {
	if event.UserEmail == "" {
		logger.Warn("no recipient for notification", "subject", subject)
		return
	}
	err := p.mailer.Send(ctx, domain.Notification{To: event.UserEmail, Subject: subject, Body: body})
	if err != nil {
		logger.Error("failed to send notification", "error", err, "subject", subject)
	}
}

func stockLines(items []domain.OrderItem) []domain.StockLine {
	lines := make([]domain.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
