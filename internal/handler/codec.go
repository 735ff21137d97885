package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

const maxBodyBytes = 64 << 10

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func timestamp(e *jx.Encoder, t time.Time) {
	if t.IsZero() {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("sku")
	e.Str(p.SKU)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("active")
	e.Bool(p.Active)
	e.FieldStart("imageUrl")
	e.Str(h.resolveImageURL(p.ImageURL))
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	sum := cart.Summarize(c)

	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range c.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(item.ID)
		e.FieldStart("productId")
		e.Int64(item.ProductID)
		e.FieldStart("name")
		e.Str(item.ProductName)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		money(e, item.Price)
		e.FieldStart("stock")
		e.Int(item.Stock)
		e.FieldStart("lineTotal")
		money(e, item.LineTotal())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("promotion")
	if p := c.Promotion; p != nil {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(p.Code)
		e.FieldStart("type")
		e.Str(string(p.Type))
		e.FieldStart("value")
		money(e, p.Value)
		e.FieldStart("description")
		e.Str(p.Description)
		e.ObjEnd()
	} else {
		e.Null()
	}
	e.FieldStart("subtotal")
	money(e, sum.Subtotal)
	e.FieldStart("discount")
	money(e, sum.Discount)
	e.FieldStart("total")
	money(e, sum.Total)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("orderNumber")
	e.Str(o.Number)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount")
	money(e, o.Discount)
	e.FieldStart("shipping")
	money(e, o.Shipping)
	e.FieldStart("tax")
	money(e, o.Tax)
	e.FieldStart("total")
	money(e, o.Total)

	e.FieldStart("customer")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Contact.Name)
	e.FieldStart("email")
	e.Str(o.Contact.Email)
	e.FieldStart("phone")
	e.Str(o.Contact.Phone)
	e.ObjEnd()

	e.FieldStart("delivery")
	e.ObjStart()
	e.FieldStart("method")
	e.Str(string(o.Delivery.Method))
	e.FieldStart("city")
	e.Str(o.Delivery.City)
	e.FieldStart("address")
	e.Str(o.Delivery.Address)
	e.FieldStart("pickupLocation")
	e.Str(o.Delivery.PickupLocation)
	e.ObjEnd()

	e.FieldStart("notes")
	e.Str(o.Notes)

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(item.ProductID)
		e.FieldStart("name")
		e.Str(item.ProductName)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		money(e, item.Price)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("payment")
	if p := o.Payment; p != nil {
		e.ObjStart()
		e.FieldStart("provider")
		e.Str(p.Provider)
		e.FieldStart("status")
		e.Str(p.Status)
		e.FieldStart("transactionId")
		e.Str(p.TransactionID)
		e.FieldStart("amount")
		money(e, p.Amount)
		e.FieldStart("currency")
		e.Str(p.Currency)
		e.FieldStart("paidAt")
		timestamp(e, p.PaidAt)
		e.ObjEnd()
	} else {
		e.Null()
	}

	e.FieldStart("shipment")
	if s := o.Shipment; s != nil {
		e.ObjStart()
		e.FieldStart("provider")
		e.Str(s.Provider)
		e.FieldStart("trackingNumber")
		e.Str(s.TrackingNumber)
		e.FieldStart("status")
		e.Str(s.Status)
		e.FieldStart("cost")
		money(e, s.Cost)
		e.FieldStart("estimatedAt")
		timestamp(e, s.EstimatedAt)
		e.ObjEnd()
	} else {
		e.Null()
	}

	e.FieldStart("createdAt")
	timestamp(e, o.CreatedAt)
	e.ObjEnd()
}

// readBody reads a bounded JSON request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, validation.New("request body is too large or unreadable")
	}
	if len(body) == 0 {
		return nil, validation.New("request body is required")
	}
	return body, nil
}

// decodeObject walks a JSON object, handing each field to fn. Syntax errors
// become validation errors.
func decodeObject(body []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(body)
	if err := d.Obj(fn); err != nil {
		var vErr *validation.Error
		if errors.As(err, &vErr) {
			return err
		}
		return validation.New("malformed JSON body: " + err.Error())
	}
	return nil
}

// optString reads a string that may be null.
func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func fieldTypeError(field, want string) error {
	return validation.New("invalid request body",
		validation.FieldError{Field: field, Message: "must be " + want})
}

type itemRequest struct {
	ProductID int64
	Quantity  int
	hasQty    bool
}

func decodeItemRequest(body []byte) (itemRequest, error) {
	var req itemRequest
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Int64()
			if err != nil {
				return fieldTypeError("productId", "an integer")
			}
			req.ProductID = v
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return fieldTypeError("quantity", "an integer")
			}
			req.Quantity = v
			req.hasQty = true
		default:
			return d.Skip()
		}
		return nil
	})
	return req, err
}

func decodeCodeRequest(body []byte) (string, error) {
	var code string
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		switch key {
		case "code", "promoCode":
			v, err := optString(d)
			if err != nil {
				return fieldTypeError(key, "a string")
			}
			code = v
		default:
			return d.Skip()
		}
		return nil
	})
	return code, err
}

func decodeStatusRequest(body []byte) (string, error) {
	var status string
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return fieldTypeError("status", "a string")
		}
		status = v
		return nil
	})
	return status, err
}

// decodeCheckoutRequest parses
//
//	{customer:{name,email,phone}, delivery:{method,city,department,address,pickupLocation},
//	 promoCode, shippingMethod, shippingProvider, paymentProvider, notes}
func decodeCheckoutRequest(body []byte) (order.CheckoutRequest, error) {
	var req order.CheckoutRequest
	str := func(d *jx.Decoder, field string, dst *string) error {
		v, err := optString(d)
		if err != nil {
			return fieldTypeError(field, "a string")
		}
		*dst = v
		return nil
	}

	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		switch key {
		case "customer":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "name":
					return str(d, "customer.name", &req.Contact.Name)
				case "email":
					return str(d, "customer.email", &req.Contact.Email)
				case "phone":
					return str(d, "customer.phone", &req.Contact.Phone)
				default:
					return d.Skip()
				}
			})
		case "delivery":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "method":
					return str(d, "delivery.method", &req.Delivery.Method)
				case "city":
					return str(d, "delivery.city", &req.Delivery.City)
				case "department":
					return str(d, "delivery.department", &req.Delivery.Department)
				case "address":
					return str(d, "delivery.address", &req.Delivery.Address)
				case "pickupLocation":
					return str(d, "delivery.pickupLocation", &req.Delivery.PickupLocation)
				default:
					return d.Skip()
				}
			})
		case "promoCode":
			return str(d, key, &req.PromoCode)
		case "shippingMethod":
			return str(d, key, &req.ShippingMethod)
		case "shippingProvider":
			return str(d, key, &req.ShippingProvider)
		case "paymentProvider":
			return str(d, key, &req.PaymentProvider)
		case "notes":
			return str(d, key, &req.Notes)
		default:
			return d.Skip()
		}
	})
	return req, err
}
