package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pgutil"
)

// TopProductsLimit is how many best sellers a report lists.
const TopProductsLimit = 5

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scope(q domain.SalesAnalyticsQuery) *pgutil.Where {
	var w pgutil.Where
	if q.StartDate != nil {
		w.Add("o.created_at >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		w.Add("o.created_at <= ?", *q.EndDate)
	}
	if q.SellerID != nil {
		w.Add("oi.seller_id = ?", *q.SellerID)
	}
	return &w
}

func nonRevenueStatuses() []string {
	var out []string
	for _, s := range domain.OrderStatuses() {
		if !s.CountsAsRevenue() {
			out = append(out, string(s))
		}
	}
	return out
}

const fromOrderLines = ` FROM orders o JOIN order_items oi ON oi.order_id = o.id`

// Sales aggregates order lines in the query window. When a seller is given
// only that seller's lines count.
func (r *Repository) Sales(ctx context.Context, q domain.SalesAnalyticsQuery) (*domain.SalesAnalytics, error) {
	report := &domain.SalesAnalytics{
		StartDate:      q.StartDate,
		EndDate:        q.EndDate,
		OrdersByStatus: map[domain.OrderStatus]int{},
		TopProducts:    []domain.ProductSales{},
	}

	if err := r.ordersByStatus(ctx, scope(q), report); err != nil {
		return nil, err
	}

	revenue := scope(q)
	revenue.Add("NOT (o.status = ANY(?))", pq.Array(nonRevenueStatuses()))

	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(oi.total_price), 0), COALESCE(SUM(oi.quantity), 0), COUNT(DISTINCT o.id)`+fromOrderLines+revenue.SQL(),
		revenue.Args()...,
	).Scan(&report.TotalRevenue, &report.ItemsSold, &report.TotalOrders); err != nil {
		return nil, fmt.Errorf("sales totals: %w", err)
	}
	report.AverageOrderValue = AverageOrderValue(report.TotalRevenue, report.TotalOrders)

	if err := r.topProducts(ctx, revenue, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Repository) ordersByStatus(ctx context.Context, w *pgutil.Where, report *domain.SalesAnalytics) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.status, COUNT(DISTINCT o.id)`+fromOrderLines+w.SQL()+` GROUP BY o.status`, w.Args()...)
	if err != nil {
		return fmt.Errorf("orders by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status domain.OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("scan status count: %w", err)
		}
		report.OrdersByStatus[status] = n
	}
	return rows.Err()
}

func (r *Repository) topProducts(ctx context.Context, w *pgutil.Where, report *domain.SalesAnalytics) error {
	page := w.Clone()
	query := `SELECT oi.product_id, MAX(oi.product_name), SUM(oi.quantity), SUM(oi.total_price)` + fromOrderLines + page.SQL() +
		` GROUP BY oi.product_id ORDER BY SUM(oi.total_price) DESC, oi.product_id LIMIT ` + page.Arg(TopProductsLimit)

	rows, err := r.db.QueryContext(ctx, query, page.Args()...)
	if err != nil {
		return fmt.Errorf("top products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.QuantitySold, &ps.Revenue); err != nil {
			return fmt.Errorf("scan top product: %w", err)
		}
		report.TopProducts = append(report.TopProducts, ps)
	}
	return rows.Err()
}

// AverageOrderValue is revenue per order rounded to cents, or zero without orders.
func AverageOrderValue(revenue decimal.Decimal, orders int) decimal.Decimal {
	if orders <= 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(orders))).Round(2)
}
