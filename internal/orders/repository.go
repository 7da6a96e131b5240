package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/inventory"
	"github.com/joao-fontenele/marketplace/internal/pgutil"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type queryer interface {
	inventory.Querier
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const orderColumns = `id, order_number, user_id, status, payment_status, subtotal, shipping_cost, tax, total,
	shipping_address_id, billing_address_id, payment_method_id, notes, created_at, updated_at`

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"total":     "total",
}

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	return row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total,
		&o.ShippingAddressID, &o.BillingAddressID, &o.PaymentMethodID, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
}

// Catalog loads the products referenced by an order, keyed by id.
func (r *OrderRepository) Catalog(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, name, price, status
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	catalog := make(map[string]domain.Product, len(productIDs))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Status); err != nil {
			return nil, fmt.Errorf("scan catalog product: %w", err)
		}
		catalog[p.ID] = p
	}
	return catalog, rows.Err()
}

// CheckOwnership reports a field error for each address or payment method in
// in that does not belong to userID.
func (r *OrderRepository) CheckOwnership(ctx context.Context, userID string, in domain.OrderCreateData) ([]apperr.FieldError, error) {
	var fields []apperr.FieldError

	check := func(field, table, id string) error {
		if id == "" {
			return nil
		}
		var owned bool
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1 AND user_id = $2)`, id, userID,
		).Scan(&owned)
		if err != nil {
			return fmt.Errorf("check %s: %w", table, err)
		}
		if !owned {
			fields = append(fields, apperr.FieldError{Field: field, Message: "does not exist"})
		}
		return nil
	}

	if err := check("shippingAddressId", "addresses", in.ShippingAddressID); err != nil {
		return nil, err
	}
	if err := check("billingAddressId", "addresses", in.BillingAddressID); err != nil {
		return nil, err
	}
	if err := check("paymentMethodId", "payment_methods", in.PaymentMethodID); err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, subtotal, shipping_cost, tax, total,
			shipping_address_id, billing_address_id, payment_method_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus,
		order.Subtotal, order.ShippingCost, order.Tax, order.Total,
		order.ShippingAddressID, order.BillingAddressID, order.PaymentMethodID, order.Notes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if _, ok := pgutil.IsUniqueViolation(err); ok {
			return apperr.Conflict("Order number already in use, please retry")
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, seller_id, product_name, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, order.ID, item.ProductID, item.SellerID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.db, id, false)
}

func getOrder(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order := &domain.Order{}
	if err := scanOrder(q.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := loadItems(ctx, q, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}
	return order, nil
}

// loadItems fills the items of every order in byID with one query.
func loadItems(ctx context.Context, q queryer, byID map[string]*domain.Order, ids []string) error {
	for _, o := range byID {
		o.Items = []domain.OrderItem{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, product_id, seller_id, product_name, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY product_name, id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.SellerID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order := byID[orderID]
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func applyFilters(w *pgutil.Where, f domain.OrderFilters) {
	if f.Status != nil {
		w.Add("status = ?", *f.Status)
	}
	if f.PaymentStatus != nil {
		w.Add("payment_status = ?", *f.PaymentStatus)
	}
	if f.UserID != nil {
		w.Add("user_id = ?", *f.UserID)
	}
	if f.StartDate != nil {
		w.Add("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		w.Add("created_at <= ?", *f.EndDate)
	}
	if f.MinTotal != nil {
		w.Add("total >= ?", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		w.Add("total <= ?", *f.MaxTotal)
	}
}

func (r *OrderRepository) List(ctx context.Context, f domain.OrderFilters, page api.PageRequest) ([]domain.Order, int, error) {
	var where pgutil.Where
	applyFilters(&where, f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	col, ok := sortColumns[page.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if page.SortOrder == api.SortAsc {
		dir = "ASC"
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where.SQL() +
		fmt.Sprintf(` ORDER BY %s %s, id`, col, dir) +
		` LIMIT ` + where.Arg(page.Limit) + ` OFFSET ` + where.Arg(page.Offset())

	rows, err := r.db.QueryContext(ctx, query, where.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, total, nil
	}

	if err := loadItems(ctx, r.db, orderMap, orderIDs); err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}
	return orders, total, nil
}

// Guard inspects the locked order before a status change and may veto it.
type Guard func(current *domain.Order) error

// UpdateStatus moves the order to status following the transition table.
// Stock held by the order is released on cancellation and consumed on
// shipment in the same transaction. It returns the updated order and the
// status it had before.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, guard Guard) (*domain.Order, domain.OrderStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := getOrder(ctx, tx, id, true)
	if err != nil {
		return nil, "", err
	}
	previous := order.Status

	if guard != nil {
		if err := guard(order); err != nil {
			return nil, "", err
		}
	}
	if !previous.CanTransitionTo(status) {
		return nil, "", apperr.Conflict(fmt.Sprintf("Cannot change order status from %s to %s", previous, status))
	}

	switch {
	case status == domain.OrderStatusCancelled && previous.HoldsStock():
		if _, err := inventory.ReleaseTx(ctx, tx, order.StockLines()); err != nil {
			return nil, "", err
		}
	case status == domain.OrderStatusShipped:
		if _, err := inventory.CommitTx(ctx, tx, order.StockLines()); err != nil {
			return nil, "", err
		}
	}

	payment := order.PaymentStatus
	switch status {
	case domain.OrderStatusDelivered:
		payment = domain.PaymentStatusCompleted
	case domain.OrderStatusRefunded:
		payment = domain.PaymentStatusRefunded
	case domain.OrderStatusCancelled:
		if payment == domain.PaymentStatusCompleted {
			payment = domain.PaymentStatusRefunded
		} else {
			payment = domain.PaymentStatusFailed
		}
	}

	if err := tx.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`, status, payment, id).Scan(&order.UpdatedAt); err != nil {
		return nil, "", fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit order status: %w", err)
	}

	order.Status = status
	order.PaymentStatus = payment
	return order, previous, nil
}
