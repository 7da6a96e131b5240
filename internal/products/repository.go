package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

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

const productColumns = `id, seller_id, name, description, sku, price, compare_at_price,
	stock_quantity, reserved_quantity, category, brand, status,
	COALESCE(images, '{}'::text[]), COALESCE(tags, '{}'::text[]),
	specifications, variants, rating, review_count, created_at, updated_at`

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"price":     "price",
	"name":      "name",
	"rating":    "rating",
}

var errDuplicateSKU = apperr.Conflict("A product with this SKU already exists")

func scanProduct(row interface{ Scan(...any) error }, p *domain.Product) error {
	var (
		compareAt      decimal.NullDecimal
		images, tags   pq.StringArray
		specs, variant []byte
		rating         sql.NullFloat64
	)

	if err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.SKU, &p.Price, &compareAt,
		&p.StockQuantity, &p.ReservedQuantity, &p.Category, &p.Brand, &p.Status,
		&images, &tags, &specs, &variant, &rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return err
	}

	if compareAt.Valid {
		p.CompareAtPrice = &compareAt.Decimal
	}
	if rating.Valid {
		p.Rating = &rating.Float64
	}
	p.Images = []string(images)
	p.Tags = []string(tags)

	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &p.Specifications); err != nil {
			return fmt.Errorf("decode specifications: %w", err)
		}
	}
	p.Variants = []domain.ProductVariant{}
	if len(variant) > 0 {
		if err := json.Unmarshal(variant, &p.Variants); err != nil {
			return fmt.Errorf("decode variants: %w", err)
		}
	}
	return nil
}

func jsonb(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// applyFilters adds one predicate per present filter field.
func applyFilters(w *pgutil.Where, f domain.ProductFilters) {
	if f.Search != nil {
		pattern := "%" + pgutil.EscapeLike(*f.Search) + "%"
		w.Add("(name ILIKE ? OR description ILIKE ? OR ? = ANY(tags))", pattern, pattern, strings.ToLower(*f.Search))
	}
	if f.Category != nil {
		w.Add("category = ?", *f.Category)
	}
	if f.Brand != nil {
		w.Add("brand = ?", *f.Brand)
	}
	if f.SellerID != nil {
		w.Add("seller_id = ?", *f.SellerID)
	}
	if f.Status != nil {
		w.Add("status = ?", *f.Status)
	}
	if f.MinPrice != nil {
		w.Add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.Add("price <= ?", *f.MaxPrice)
	}
	if f.MinRating != nil {
		w.Add("rating >= ?", *f.MinRating)
	}
	if f.InStock != nil {
		if *f.InStock {
			w.Add("stock_quantity - reserved_quantity > 0")
		} else {
			w.Add("stock_quantity - reserved_quantity <= 0")
		}
	}
	if len(f.Tags) > 0 {
		w.Add("tags @> ?", pq.Array(f.Tags))
	}
}

func orderBy(page api.PageRequest) string {
	col, ok := sortColumns[page.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if page.SortOrder == api.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id", col, dir)
}

// List returns one page of products matching f and the total match count.
func (r *Repository) List(ctx context.Context, f domain.ProductFilters, page api.PageRequest) ([]domain.Product, int, error) {
	var where pgutil.Where
	applyFilters(&where, f)
	return r.list(ctx, &where, page)
}

func (r *Repository) list(ctx context.Context, where *pgutil.Where, page api.PageRequest) ([]domain.Product, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	pageWhere := where.Clone()
	query := `SELECT ` + productColumns + ` FROM products` + pageWhere.SQL() + orderBy(page) +
		` LIMIT ` + pageWhere.Arg(page.Limit) + ` OFFSET ` + pageWhere.Arg(page.Offset())

	rows, err := r.db.QueryContext(ctx, query, pageWhere.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product

	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err := scanProduct(row, &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	for i := range p.Variants {
		if p.Variants[i].ID == "" {
			p.Variants[i].ID = uuid.New().String()
		}
	}

	specs, err := jsonb(p.Specifications)
	if err != nil {
		return err
	}
	variants, err := jsonb(p.Variants)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, seller_id, name, description, sku, price, compare_at_price,
			stock_quantity, category, brand, status, images, tags, specifications, variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`, p.ID, p.SellerID, p.Name, p.Description, p.SKU, p.Price, decimalOrNil(p.CompareAtPrice),
		p.StockQuantity, p.Category, p.Brand, p.Status, pq.Array(p.Images), pq.Array(p.Tags), specs, variants,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if _, ok := pgutil.IsUniqueViolation(err); ok {
			return errDuplicateSKU
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

// Update changes only the fields present in u and returns the stored product.
func (r *Repository) Update(ctx context.Context, id string, u domain.ProductUpdateData) (*domain.Product, error) {
	var w pgutil.Where
	sets := []string{"updated_at = now()"}
	set := func(col string, v any) {
		sets = append(sets, col+" = "+w.Arg(v))
	}

	if u.Name != nil {
		set("name", *u.Name)
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	if u.SKU != nil {
		set("sku", *u.SKU)
	}
	if u.Price != nil {
		set("price", *u.Price)
	}
	if u.CompareAtPrice != nil {
		set("compare_at_price", *u.CompareAtPrice)
	}
	if u.StockQuantity != nil {
		set("stock_quantity", *u.StockQuantity)
	}
	if u.Category != nil {
		set("category", *u.Category)
	}
	if u.Brand != nil {
		set("brand", *u.Brand)
	}
	if u.Status != nil {
		set("status", *u.Status)
	}
	if u.Images != nil {
		set("images", pq.Array(*u.Images))
	}
	if u.Tags != nil {
		set("tags", pq.Array(*u.Tags))
	}
	if u.Specifications != nil {
		specs, err := jsonb(*u.Specifications)
		if err != nil {
			return nil, err
		}
		set("specifications", specs)
	}
	if u.Variants != nil {
		variants := *u.Variants
		for i := range variants {
			if variants[i].ID == "" {
				variants[i].ID = uuid.New().String()
			}
		}
		data, err := jsonb(variants)
		if err != nil {
			return nil, err
		}
		set("variants", data)
	}

	w.Add("id = ?", id)
	query := `UPDATE products SET ` + strings.Join(sets, ", ") + w.SQL() + ` RETURNING ` + productColumns

	var p domain.Product
	if err := scanProduct(r.db.QueryRowContext(ctx, query, w.Args()...), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Product not found")
		}
		if _, ok := pgutil.IsUniqueViolation(err); ok {
			return nil, errDuplicateSKU
		}
		if constraint, ok := pgutil.IsCheckViolation(err); ok {
			return nil, apperr.Validation(apperr.FieldError{Field: "stockQuantity", Message: "violates " + constraint})
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if pgutil.IsForeignKeyViolation(err) {
			return apperr.Conflict("Product has orders and cannot be deleted; archive it instead")
		}
		return fmt.Errorf("delete product: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("Product not found")
	}
	return nil
}

// Search returns a page of matching products together with facet counts
// computed over every match, not only the returned page.
func (r *Repository) Search(ctx context.Context, q domain.SearchQuery, page api.PageRequest) (*domain.SearchResult, int, error) {
	var where pgutil.Where
	applyFilters(&where, q.Filters())

	products, total, err := r.list(ctx, &where, page)
	if err != nil {
		return nil, 0, err
	}

	aggs, err := r.aggregations(ctx, &where)
	if err != nil {
		return nil, 0, err
	}
	return &domain.SearchResult{Products: products, Aggregations: *aggs}, total, nil
}

func (r *Repository) aggregations(ctx context.Context, where *pgutil.Where) (*domain.SearchAggregations, error) {
	aggs := &domain.SearchAggregations{}

	var err error
	if aggs.Categories, err = r.facet(ctx, where, "category"); err != nil {
		return nil, err
	}
	brandWhere := where.Clone()
	brandWhere.Add("brand <> ''")
	if aggs.Brands, err = r.facet(ctx, brandWhere, "brand"); err != nil {
		return nil, err
	}
	if aggs.PriceRanges, err = r.priceRanges(ctx, where); err != nil {
		return nil, err
	}
	if aggs.Ratings, err = r.ratings(ctx, where); err != nil {
		return nil, err
	}
	return aggs, nil
}

// facet counts matches per distinct value of col, most common first.
func (r *Repository) facet(ctx context.Context, where *pgutil.Where, col string) ([]domain.Bucket, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM products%[2]s GROUP BY %[1]s ORDER BY COUNT(*) DESC, %[1]s LIMIT 20`, col, where.SQL())

	rows, err := r.db.QueryContext(ctx, query, where.Args()...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", col, err)
	}
	defer func() { _ = rows.Close() }()

	buckets := []domain.Bucket{}
	for rows.Next() {
		var b domain.Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("scan %s bucket: %w", col, err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (r *Repository) priceRanges(ctx context.Context, where *pgutil.Where) ([]domain.PriceRangeBucket, error) {
	w := where.Clone()
	cols := make([]string, len(domain.PriceRanges))
	for i, pr := range domain.PriceRanges {
		cond := "price >= " + w.Arg(pr.From)
		if pr.To != nil {
			cond += " AND price < " + w.Arg(*pr.To)
		}
		cols[i] = "COUNT(*) FILTER (WHERE " + cond + ")"
	}

	buckets := make([]domain.PriceRangeBucket, len(domain.PriceRanges))
	dest := make([]any, len(buckets))
	for i := range buckets {
		buckets[i] = domain.PriceRanges[i]
		dest[i] = &buckets[i].Count
	}

	query := `SELECT ` + strings.Join(cols, ", ") + ` FROM products` + w.SQL()
	if err := r.db.QueryRowContext(ctx, query, w.Args()...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("aggregate price ranges: %w", err)
	}
	return buckets, nil
}

// ratings counts matches rated at least 5, 4, 3, 2 and 1 stars.
func (r *Repository) ratings(ctx context.Context, where *pgutil.Where) ([]domain.Bucket, error) {
	buckets := make([]domain.Bucket, 5)
	cols := make([]string, 5)
	dest := make([]any, 5)
	for i := range buckets {
		stars := 5 - i
		buckets[i].Key = fmt.Sprintf("%d+", stars)
		cols[i] = fmt.Sprintf("COUNT(*) FILTER (WHERE rating >= %d)", stars)
		dest[i] = &buckets[i].Count
	}

	query := `SELECT ` + strings.Join(cols, ", ") + ` FROM products` + where.SQL()
	if err := r.db.QueryRowContext(ctx, query, where.Args()...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	return buckets, nil
}
