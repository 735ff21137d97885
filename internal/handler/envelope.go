package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
	"github.com/xenking/storefront-checkout/internal/integration/carrier"
	"github.com/xenking/storefront-checkout/internal/integration/payment"
)

// Sentinel errors raised by the HTTP layer itself.
var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("admin access required")
)

func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	body(e)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeData writes {"success":true,"data":...}.
func writeData(w http.ResponseWriter, status int, data func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("data")
		data(e)
		e.ObjEnd()
	})
}

// WriteFailure writes {"success":false,"message":...,"details":[...]}.
// Middleware outside this package uses it for its own rejections.
func WriteFailure(w http.ResponseWriter, status int, message string, details ...validation.FieldError) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(false)
		e.FieldStart("message")
		e.Str(message)
		if len(details) > 0 {
			e.FieldStart("details")
			e.ArrStart()
			for _, d := range details {
				e.ObjStart()
				e.FieldStart("field")
				e.Str(d.Field)
				e.FieldStart("message")
				e.Str(d.Message)
				e.ObjEnd()
			}
			e.ArrEnd()
		}
		e.ObjEnd()
	})
}

// writeError maps a domain error to a status code and envelope. Unknown
// errors are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr     *validation.Error
		promoErr *promotion.InvalidError
		stockErr *order.InsufficientStockError
		trErr    *order.TransitionError
		payErr   *payment.Error
		shipErr  *carrier.Error
	)
	switch {
	case errors.As(err, &vErr):
		WriteFailure(w, http.StatusBadRequest, vErr.Message, vErr.Details...)
	case errors.Is(err, order.ErrEmptyCart):
		WriteFailure(w, http.StatusBadRequest, "Cart is empty")
	case errors.As(err, &promoErr):
		WriteFailure(w, http.StatusBadRequest, promoErr.Error())
	case errors.As(err, &stockErr):
		WriteFailure(w, http.StatusBadRequest, stockErr.Error())
	case errors.Is(err, errUnauthorized), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnknownCustomer):
		WriteFailure(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, errForbidden):
		WriteFailure(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, product.ErrNotFound):
		WriteFailure(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, order.ErrNotFound):
		WriteFailure(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, cart.ErrItemNotFound):
		WriteFailure(w, http.StatusNotFound, "Cart item not found")
	case errors.As(err, &trErr):
		WriteFailure(w, http.StatusConflict, trErr.Error())
	case errors.As(err, &payErr):
		zctx.From(r.Context()).Warn("Payment failed", zap.Error(err))
		WriteFailure(w, http.StatusPaymentRequired, "Payment could not be completed")
	case errors.As(err, &shipErr):
		zctx.From(r.Context()).Warn("Shipment booking failed", zap.Error(err))
		WriteFailure(w, http.StatusBadGateway, "Shipment could not be booked")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		WriteFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}
