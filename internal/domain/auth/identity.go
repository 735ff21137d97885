package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the customer's access level.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// ErrUnknownCustomer is returned when a token subject has no customer row.
var ErrUnknownCustomer = errors.New("customer not found")

// Identity is the authenticated caller of a request.
type Identity struct {
	CustomerID int64
	Email      string
	Name       string
	Role       Role
}

// IsAdmin reports whether the identity may use back-office operations.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Repository resolves token subjects into identities.
type Repository interface {
	FindCustomer(ctx context.Context, id int64) (*Identity, error)
}

type identityKey struct{}

// WithIdentity stores id in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
