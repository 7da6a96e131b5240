package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetStock(ctx context.Context, productID string) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, stock_quantity, reserved_quantity
		FROM products
		WHERE id = $1
	`, productID).Scan(&stock.ProductID, &stock.StockQuantity, &stock.ReservedQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

// Reserve holds stock for every line or for none of them.
func (r *Repository) Reserve(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return r.inTx(ctx, lines, ReserveTx)
}

// Release returns held stock for every line or for none of them.
func (r *Repository) Release(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return r.inTx(ctx, lines, ReleaseTx)
}

func (r *Repository) inTx(ctx context.Context, lines []domain.StockLine,
	apply func(context.Context, Querier, []domain.StockLine) ([]domain.StockLevel, error),
) ([]domain.StockLevel, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	levels, err := apply(ctx, tx, lines)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stock change: %w", err)
	}
	return levels, nil
}

// Merge sums quantities per product and orders lines by product id, so
// concurrent transactions lock rows in the same order.
func Merge(lines []domain.StockLine) []domain.StockLine {
	totals := make(map[string]int, len(lines))
	var out []domain.StockLine
	for _, l := range lines {
		if _, seen := totals[l.ProductID]; !seen {
			out = append(out, domain.StockLine{ProductID: l.ProductID})
		}
		totals[l.ProductID] += l.Quantity
	}
	for i := range out {
		out[i].Quantity = totals[out[i].ProductID]
	}
	slices.SortFunc(out, func(a, b domain.StockLine) int { return strings.Compare(a.ProductID, b.ProductID) })
	return out
}

// ReserveTx moves quantity from available to reserved for each line within q.
func ReserveTx(ctx context.Context, q Querier, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return apply(ctx, q, lines, `
		UPDATE products
		SET reserved_quantity = reserved_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity - reserved_quantity >= $2
		RETURNING id, stock_quantity, reserved_quantity
	`, "Insufficient stock for product %s")
}

// ReleaseTx returns reserved quantity to available for each line within q.
func ReleaseTx(ctx context.Context, q Querier, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return apply(ctx, q, lines, `
		UPDATE products
		SET reserved_quantity = reserved_quantity - $2, updated_at = now()
		WHERE id = $1 AND reserved_quantity >= $2
		RETURNING id, stock_quantity, reserved_quantity
	`, "Insufficient reserved stock to release for product %s")
}

// CommitTx removes shipped quantity from both on-hand and reserved stock.
func CommitTx(ctx context.Context, q Querier, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return apply(ctx, q, lines, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, reserved_quantity = reserved_quantity - $2, updated_at = now()
		WHERE id = $1 AND reserved_quantity >= $2
		RETURNING id, stock_quantity, reserved_quantity
	`, "Insufficient reserved stock to ship product %s")
}

func apply(ctx context.Context, q Querier, lines []domain.StockLine, query, conflictMsg string) ([]domain.StockLevel, error) {
	merged := Merge(lines)
	levels := make([]domain.StockLevel, 0, len(merged))

	for _, line := range merged {
		var level domain.StockLevel
		err := q.QueryRowContext(ctx, query, line.ProductID, line.Quantity).
			Scan(&level.ProductID, &level.StockQuantity, &level.ReservedQuantity)
		if err == nil {
			levels = append(levels, level)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update stock for %s: %w", line.ProductID, err)
		}

		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, line.ProductID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check product %s: %w", line.ProductID, err)
		}
		if !exists {
			return nil, apperr.NotFound(fmt.Sprintf("Product %s not found", line.ProductID))
		}
		return nil, apperr.Conflict(fmt.Sprintf(conflictMsg, line.ProductID))
	}
	return levels, nil
}
