package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
)

// TokenVerifier extracts the customer id from a bearer token.
type TokenVerifier interface {
	Subject(token string) (int64, error)
}

var _ TokenVerifier = (*auth.Tokens)(nil)

// Security authenticates API requests via HS256 bearer tokens whose subject
// is a customer id, then loads the customer so role changes apply at once.
type Security struct {
	tokens    TokenVerifier
	customers auth.Repository
}

// NewSecurity creates a Security with the given verifier and customer lookup.
func NewSecurity(tokens TokenVerifier, customers auth.Repository) *Security {
	return &Security{tokens: tokens, customers: customers}
}

// Authenticate rejects requests without a valid token and stores the caller's
// identity in the request context.
func (s *Security) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if !errors.Is(err, errUnauthorized) && !errors.Is(err, auth.ErrInvalidToken) &&
				!errors.Is(err, auth.ErrUnknownCustomer) {
				writeError(w, r, err)
				return
			}
			zctx.From(r.Context()).Debug("Rejected credentials", zap.Error(err))
			writeError(w, r, errUnauthorized)
			return
		}
		ctx := auth.WithIdentity(r.Context(), *id)
		ctx = zctx.With(ctx, zap.Int64("customer_id", id.CustomerID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated callers without the admin role.
func (s *Security) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, r, errUnauthorized)
			return
		}
		if !id.IsAdmin() {
			writeError(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Security) identify(ctx context.Context, header string) (*auth.Identity, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, errUnauthorized
	}
	customerID, err := s.tokens.Subject(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	id, err := s.customers.FindCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "find customer")
	}
	return id, nil
}
