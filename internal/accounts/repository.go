package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

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

func (r *Repository) CreateUser(ctx context.Context, u *domain.User, passwordHash string) error {
	u.ID = uuid.New().String()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, passwordHash, u.FirstName, u.LastName, u.Role, u.IsVerified,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if _, ok := pgutil.IsUniqueViolation(err); ok {
			return apperr.Conflict("An account with this email already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, first_name, last_name, role, is_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, u *domain.User, extra ...any) error {
	dest := []any{&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

// GetUserByEmail returns the user and the stored password hash.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	var u domain.User
	var hash string

	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email)
	if err := scanUser(row, &u, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", apperr.NotFound("User not found")
		}
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}
	return &u, hash, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User

	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repository) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, full_name, line1, line2, city, state, postal_code, country, phone, is_default, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	addresses := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.FullName, &a.Line1, &a.Line2, &a.City,
			&a.State, &a.PostalCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// CreateAddress stores a. The first address of its type, or one flagged as
// default, becomes the only default of that type.
func (r *Repository) CreateAddress(ctx context.Context, a *domain.Address) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM addresses WHERE user_id = $1 AND type = $2`, a.UserID, a.Type,
	).Scan(&existing); err != nil {
		return fmt.Errorf("count addresses: %w", err)
	}
	if existing == 0 {
		a.IsDefault = true
	}

	if a.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND type = $2`, a.UserID, a.Type,
		); err != nil {
			return fmt.Errorf("clear default address: %w", err)
		}
	}

	a.ID = uuid.New().String()
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO addresses (id, user_id, type, full_name, line1, line2, city, state, postal_code, country, phone, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, a.ID, a.UserID, a.Type, a.FullName, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.Phone, a.IsDefault,
	).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, provider, last4, expiry_month, expiry_year, is_default, created_at
		FROM payment_methods
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	methods := []domain.PaymentMethod{}
	for rows.Next() {
		var pm domain.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.UserID, &pm.Type, &pm.Provider, &pm.Last4,
			&pm.ExpiryMonth, &pm.ExpiryYear, &pm.IsDefault, &pm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		methods = append(methods, pm)
	}
	return methods, rows.Err()
}

func (r *Repository) CreatePaymentMethod(ctx context.Context, pm *domain.PaymentMethod) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_methods WHERE user_id = $1`, pm.UserID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("count payment methods: %w", err)
	}
	if existing == 0 {
		pm.IsDefault = true
	}

	if pm.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1`, pm.UserID,
		); err != nil {
			return fmt.Errorf("clear default payment method: %w", err)
		}
	}

	pm.ID = uuid.New().String()
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO payment_methods (id, user_id, type, provider, last4, expiry_month, expiry_year, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, pm.ID, pm.UserID, pm.Type, pm.Provider, pm.Last4, pm.ExpiryMonth, pm.ExpiryYear, pm.IsDefault,
	).Scan(&pm.CreatedAt); err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}

	return tx.Commit()
}
