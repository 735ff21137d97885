package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

// CartService is the cart use-case surface used by the HTTP layer.
type CartService interface {
	Get(ctx context.Context, customerID int64) (*cart.Cart, error)
	AddItem(ctx context.Context, customerID, productID int64, quantity int) (*cart.Cart, error)
	UpdateItem(ctx context.Context, customerID, itemID int64, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, customerID, itemID int64) (*cart.Cart, error)
	Clear(ctx context.Context, customerID int64) (*cart.Cart, error)
	ApplyPromotion(ctx context.Context, customerID int64, code string) (*cart.Cart, error)
	RemovePromotion(ctx context.Context, customerID int64) (*cart.Cart, error)
}

// OrderService is the checkout and order surface used by the HTTP layer.
type OrderService interface {
	Checkout(ctx context.Context, customerID int64, req order.CheckoutRequest) (*order.Order, error)
	List(ctx context.Context, customerID int64) ([]order.Order, error)
	Get(ctx context.Context, id, customerID int64, isAdmin bool) (*order.Order, error)
	UpdateStatus(ctx context.Context, id int64, next order.Status) (*order.Order, error)
}

var (
	_ CartService  = (*cart.Service)(nil)
	_ OrderService = (*order.Service)(nil)
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the storefront JSON API.
type Handler struct {
	products     product.Repository
	carts        CartService
	orders       OrderService
	security     *Security
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	carts CartService,
	orders OrderService,
	security *Security,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		security:     security,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Routes registers every endpoint on mux. The catalog is public; everything
// else requires a bearer token.
func (h *Handler) Routes(mux *http.ServeMux) {
	authed := h.security.Authenticate
	admin := func(next http.HandlerFunc) http.Handler {
		return h.security.Authenticate(h.security.RequireAdmin(next))
	}

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("GET /api/cart", authed(http.HandlerFunc(h.GetCart)))
	mux.Handle("DELETE /api/cart", authed(http.HandlerFunc(h.ClearCart)))
	mux.Handle("POST /api/cart/items", authed(http.HandlerFunc(h.AddCartItem)))
	mux.Handle("PATCH /api/cart/items/{itemId}", authed(http.HandlerFunc(h.UpdateCartItem)))
	mux.Handle("DELETE /api/cart/items/{itemId}", authed(http.HandlerFunc(h.RemoveCartItem)))
	mux.Handle("POST /api/cart/apply-promo", authed(http.HandlerFunc(h.ApplyPromotion)))
	mux.Handle("DELETE /api/cart/promo", authed(http.HandlerFunc(h.RemovePromotion)))

	mux.Handle("POST /api/orders/checkout", authed(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /api/orders", authed(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /api/orders/{id}", authed(http.HandlerFunc(h.GetOrder)))

	mux.Handle("PATCH /api/admin/orders/{id}/status", admin(h.UpdateOrderStatus))
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.New("invalid path parameter",
			validation.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

// identity returns the caller set by Security.Authenticate.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Identity{}, errUnauthorized
	}
	return id, nil
}
