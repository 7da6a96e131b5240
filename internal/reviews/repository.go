package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pgutil"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var errProductNotFound = apperr.NotFound("Product not found")

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"rating":    "rating",
}

func productExists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, productID string) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return errProductNotFound
	}
	return nil
}

// lockProduct holds the product row until the transaction ends so concurrent
// reviews refresh the rating one at a time.
func lockProduct(ctx context.Context, tx *sql.Tx, productID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return errProductNotFound
	}
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, productID string, f domain.ReviewFilters, page api.PageRequest) ([]domain.Review, int, error) {
	if err := productExists(ctx, r.db, productID); err != nil {
		return nil, 0, err
	}

	var where pgutil.Where
	where.Add("product_id = ?", productID)
	if f.Rating != nil {
		where.Add("rating = ?", *f.Rating)
	}
	if f.MinRating != nil {
		where.Add("rating >= ?", *f.MinRating)
	}
	if f.MaxRating != nil {
		where.Add("rating <= ?", *f.MaxRating)
	}
	if f.VerifiedOnly != nil && *f.VerifiedOnly {
		where.Add("is_verified_purchase")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	col, ok := sortColumns[page.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if page.SortOrder == api.SortAsc {
		dir = "ASC"
	}

	query := `SELECT id, product_id, user_id, rating, title, comment, is_verified_purchase, created_at, updated_at
		FROM reviews` + where.SQL() + fmt.Sprintf(` ORDER BY %s %s, id`, col, dir) +
		` LIMIT ` + where.Arg(page.Limit) + ` OFFSET ` + where.Arg(page.Offset())

	rows, err := r.db.QueryContext(ctx, query, where.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Title, &rv.Comment,
			&rv.IsVerifiedPurchase, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// Create stores the review, flags it as a verified purchase when the author
// has a delivered order containing the product, and refreshes the product's
// rating and review count.
func (r *Repository) Create(ctx context.Context, rv *domain.Review) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockProduct(ctx, tx, rv.ProductID); err != nil {
		return err
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = $3
		)
	`, rv.UserID, rv.ProductID, domain.OrderStatusDelivered).Scan(&rv.IsVerifiedPurchase); err != nil {
		return fmt.Errorf("check purchase: %w", err)
	}

	rv.ID = uuid.New().String()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reviews (id, product_id, user_id, rating, title, comment, is_verified_purchase)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Comment, rv.IsVerifiedPurchase,
	).Scan(&rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		if _, ok := pgutil.IsUniqueViolation(err); ok {
			return apperr.Conflict("You have already reviewed this product")
		}
		return fmt.Errorf("insert review: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET rating = s.avg_rating, review_count = s.review_count, updated_at = now()
		FROM (
			SELECT ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS review_count
			FROM reviews WHERE product_id = $1
		) s
		WHERE p.id = $1
	`, rv.ProductID); err != nil {
		return fmt.Errorf("refresh product rating: %w", err)
	}

	return tx.Commit()
}
