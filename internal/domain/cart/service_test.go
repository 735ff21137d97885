package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

// --- Fakes ---

type memCartRepo struct {
	products *memProductRepo
	promos   map[int64]*promotion.Promotion
	carts    map[int64]*Cart
	nextID   int64
}

func newMemCartRepo(products *memProductRepo) *memCartRepo {
	return &memCartRepo{
		products: products,
		promos:   map[int64]*promotion.Promotion{},
		carts:    map[int64]*Cart{},
	}
}

func (m *memCartRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memCartRepo) GetOrCreate(_ context.Context, customerID int64) (*Cart, error) {
	c, ok := m.carts[customerID]
	if !ok {
		c = &Cart{ID: m.id(), CustomerID: customerID}
		m.carts[customerID] = c
	}
	out := *c
	out.Items = make([]Item, len(c.Items))
	for i, item := range c.Items {
		item.Stock = m.products.byID[item.ProductID].Stock
		out.Items[i] = item
	}
	return &out, nil
}

func (m *memCartRepo) byCartID(cartID int64) *Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (m *memCartRepo) AddItem(_ context.Context, cartID, productID int64, quantity int, price decimal.Decimal) error {
	c := m.byCartID(cartID)
	c.Items = append(c.Items, Item{
		ID:          m.id(),
		ProductID:   productID,
		ProductName: m.products.byID[productID].Name,
		Quantity:    quantity,
		Price:       price,
	})
	return nil
}

func (m *memCartRepo) SetQuantity(_ context.Context, cartID, itemID int64, quantity int) error {
	c := m.byCartID(cartID)
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
		}
	}
	return nil
}

func (m *memCartRepo) RemoveItem(_ context.Context, cartID, itemID int64) error {
	c := m.byCartID(cartID)
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, cartID int64) error {
	c := m.byCartID(cartID)
	c.Items = nil
	c.Promotion = nil
	return nil
}

func (m *memCartRepo) SetPromotion(_ context.Context, cartID int64, promotionID *int64) error {
	c := m.byCartID(cartID)
	if promotionID == nil {
		c.Promotion = nil
		return nil
	}
	c.Promotion = m.promos[*promotionID]
	return nil
}

type memProductRepo struct {
	byID map[int64]*product.Product
}

func (m *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type stubValidator struct {
	promo *promotion.Promotion
	err   error
}

func (s *stubValidator) Validate(_ context.Context, _ string) (*promotion.Promotion, error) {
	return s.promo, s.err
}

func (s *stubValidator) Revalidate(_ context.Context, _ int64) (*promotion.Promotion, error) {
	return s.promo, s.err
}

// --- Helpers ---

func newFixture(t *testing.T) (*Service, *memCartRepo) {
	t.Helper()
	products := &memProductRepo{byID: map[int64]*product.Product{
		1: {ID: 1, Name: "Headphones", Price: decimal.NewFromInt(12999), Stock: 5, Active: true},
		2: {ID: 2, Name: "Jacket", Price: decimal.NewFromInt(4599), Stock: 2, Active: true},
		3: {ID: 3, Name: "Retired", Price: decimal.NewFromInt(10), Stock: 10, Active: false},
	}}
	carts := newMemCartRepo(products)
	return NewService(carts, products, &stubValidator{}), carts
}

// --- Tests ---

func TestService_GetCreatesEmptyCart(t *testing.T) {
	svc, _ := newFixture(t)

	c, err := svc.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, int64(10), c.CustomerID)
}

func TestService_AddItem(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, 10, 1, 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(25998).Equal(c.Subtotal()))

	// Merging clamps to stock.
	c, err = svc.AddItem(ctx, 10, 1, 4)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestService_AddItemKeepsPriceSnapshot(t *testing.T) {
	svc, carts := newFixture(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 10, 2, 1)
	require.NoError(t, err)

	carts.products.byID[2].Price = decimal.NewFromInt(9999)

	c, err := svc.AddItem(ctx, 10, 2, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4599).Equal(c.Items[0].Price))
}

func TestService_AddItemRejects(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 10, 1, 0)
	var vErr *validation.Error
	require.ErrorAs(t, err, &vErr)

	_, err = svc.AddItem(ctx, 10, 2, 3)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "insufficient stock", vErr.Message)

	_, err = svc.AddItem(ctx, 10, 3, 1)
	require.ErrorAs(t, err, &vErr)

	_, err = svc.AddItem(ctx, 10, 99, 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestService_UpdateItemClamps(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, 10, 1, 1)
	require.NoError(t, err)
	itemID := c.Items[0].ID

	c, err = svc.UpdateItem(ctx, 10, itemID, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Items[0].Quantity)

	c, err = svc.UpdateItem(ctx, 10, itemID, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestService_UpdateItemSoldOut(t *testing.T) {
	svc, carts := newFixture(t)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, 10, 2, 1)
	require.NoError(t, err)
	itemID := c.Items[0].ID

	carts.products.byID[2].Stock = 0

	_, err = svc.UpdateItem(ctx, 10, itemID, 1)
	var vErr *validation.Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "insufficient stock", vErr.Message)
	require.Len(t, vErr.Details, 1)
	assert.Equal(t, "quantity", vErr.Details[0].Field)

	c, err = svc.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestService_ItemOwnership(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, 10, 1, 1)
	require.NoError(t, err)
	foreignItem := c.Items[0].ID

	_, err = svc.UpdateItem(ctx, 11, foreignItem, 2)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.RemoveItem(ctx, 11, foreignItem)
	require.ErrorIs(t, err, ErrItemNotFound)

	c, err = svc.RemoveItem(ctx, 10, foreignItem)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestService_Promotions(t *testing.T) {
	svc, carts := newFixture(t)
	ctx := context.Background()

	promo := &promotion.Promotion{
		ID:          5,
		Code:        "WELCOME10",
		Type:        promotion.TypePercentage,
		Value:       decimal.NewFromInt(10),
		MinSubtotal: decimal.NewFromInt(1000),
		Active:      true,
	}
	carts.promos[promo.ID] = promo
	svc.promotions = &stubValidator{promo: promo}

	_, err := svc.AddItem(ctx, 10, 1, 1)
	require.NoError(t, err)

	c, err := svc.ApplyPromotion(ctx, 10, "welcome10")
	require.NoError(t, err)
	require.NotNil(t, c.Promotion)

	sum := Summarize(c)
	assert.True(t, decimal.NewFromInt(12999).Equal(sum.Subtotal))
	assert.True(t, decimal.RequireFromString("1299.9").Equal(sum.Discount))
	assert.True(t, decimal.RequireFromString("11699.1").Equal(sum.Total))

	c, err = svc.RemovePromotion(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, c.Promotion)

	svc.promotions = &stubValidator{err: &promotion.InvalidError{Code: "NOPE", Kind: promotion.KindNotFound}}
	_, err = svc.ApplyPromotion(ctx, 10, "NOPE")
	var invErr *promotion.InvalidError
	require.ErrorAs(t, err, &invErr)
}

func TestService_Clear(t *testing.T) {
	svc, carts := newFixture(t)
	ctx := context.Background()

	promo := &promotion.Promotion{ID: 5, Code: "X", Type: promotion.TypeFixed, Value: decimal.NewFromInt(1), Active: true}
	carts.promos[promo.ID] = promo
	svc.promotions = &stubValidator{promo: promo}

	_, err := svc.AddItem(ctx, 10, 1, 1)
	require.NoError(t, err)
	_, err = svc.ApplyPromotion(ctx, 10, "X")
	require.NoError(t, err)

	c, err := svc.Clear(ctx, 10)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.Promotion)
}

func TestSummarize_PreviewBelowMinimum(t *testing.T) {
	c := &Cart{
		Items: []Item{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(4000)}},
		Promotion: &promotion.Promotion{
			Code:        "BLACKFRIDAY",
			Type:        promotion.TypePercentage,
			Value:       decimal.NewFromInt(30),
			MinSubtotal: decimal.NewFromInt(5000),
		},
	}
	sum := Summarize(c)
	assert.True(t, decimal.Zero.Equal(sum.Discount))
	assert.True(t, decimal.NewFromInt(4000).Equal(sum.Total))
}
