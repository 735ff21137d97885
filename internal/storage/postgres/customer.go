package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
)

const (
	getCustomerSQL = `SELECT id, email, name, role FROM customers WHERE id = $1`

	upsertCustomerSQL = `INSERT INTO customers (email, name, role) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING id`
)

var _ auth.Repository = (*CustomerRepository)(nil)

// CustomerRepository resolves bearer token subjects to customers.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindCustomer loads the identity of customer id.
func (r *CustomerRepository) FindCustomer(ctx context.Context, id int64) (*auth.Identity, error) {
	var (
		ident auth.Identity
		role  string
	)
	err := r.pool.QueryRow(ctx, getCustomerSQL, id).Scan(&ident.CustomerID, &ident.Email, &ident.Name, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnknownCustomer
		}
		return nil, fmt.Errorf("finding customer %d: %w", id, err)
	}
	ident.Role = auth.Role(role)
	return &ident, nil
}

// Upsert creates or updates a customer keyed by email and sets ident.CustomerID.
func (r *CustomerRepository) Upsert(ctx context.Context, ident *auth.Identity) error {
	role := ident.Role
	if role == "" {
		role = auth.RoleCustomer
	}
	err := r.pool.QueryRow(ctx, upsertCustomerSQL, ident.Email, ident.Name, string(role)).Scan(&ident.CustomerID)
	if err != nil {
		return fmt.Errorf("upserting customer %q: %w", ident.Email, err)
	}
	ident.Role = role
	return nil
}
