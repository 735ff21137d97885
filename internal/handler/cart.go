package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

func writeCart(w http.ResponseWriter, r *http.Request, c *cart.Cart, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, c)
	})
}

// GetCart returns the caller's cart with totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.Get(r.Context(), id.CustomerID)
	writeCart(w, r, c, err)
}

// AddCartItem handles {productId, quantity}; quantity defaults to 1.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeItemRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		writeError(w, r, validation.New("invalid request body",
			validation.FieldError{Field: "productId", Message: "is required"}))
		return
	}
	if !req.hasQty {
		req.Quantity = 1
	}
	c, err := h.carts.AddItem(r.Context(), id.CustomerID, req.ProductID, req.Quantity)
	writeCart(w, r, c, err)
}

// UpdateCartItem handles {quantity} for one cart line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeItemRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !req.hasQty {
		writeError(w, r, validation.New("invalid request body",
			validation.FieldError{Field: "quantity", Message: "is required"}))
		return
	}
	c, err := h.carts.UpdateItem(r.Context(), id.CustomerID, itemID, req.Quantity)
	writeCart(w, r, c, err)
}

// RemoveCartItem deletes one cart line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), id.CustomerID, itemID)
	writeCart(w, r, c, err)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.Clear(r.Context(), id.CustomerID)
	writeCart(w, r, c, err)
}

// ApplyPromotion attaches a promotion code to the cart.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code, err := decodeCodeRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if code == "" {
		writeError(w, r, validation.New("invalid request body",
			validation.FieldError{Field: "code", Message: "is required"}))
		return
	}
	c, err := h.carts.ApplyPromotion(r.Context(), id.CustomerID, code)
	writeCart(w, r, c, err)
}

// RemovePromotion detaches the cart's promotion.
func (h *Handler) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.RemovePromotion(r.Context(), id.CustomerID)
	writeCart(w, r, c, err)
}
