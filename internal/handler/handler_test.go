package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casashop/cart-api/internal/domain/auth"
	"github.com/casashop/cart-api/internal/domain/cart"
	"github.com/casashop/cart-api/internal/domain/coupon"
	"github.com/casashop/cart-api/internal/domain/order"
	"github.com/casashop/cart-api/internal/domain/product"
)

// --- In-memory fakes ---

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func (m *memCartRepo) Load(_ context.Context, identity cart.Identity) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.carts[identity.Key()]; ok {
		cp := *c
		cp.Items = append([]cart.LineItem(nil), c.Items...)
		return &cp, nil
	}
	return &cart.Cart{Identity: identity}, nil
}

func (m *memCartRepo) Replace(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	cp.Items = append([]cart.LineItem(nil), c.Items...)
	m.carts[c.Identity.Key()] = &cp
	return nil
}

type memProductRepo struct {
	products []product.Product
}

func (m *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			cp := m.products[i]
			return &cp, nil
		}
	}
	return nil, product.ErrNotFound
}

type memCouponRepo struct {
	rules map[string]*coupon.Rule
}

func (m *memCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	if r, ok := m.rules[code]; ok {
		return r, nil
	}
	return nil, coupon.ErrCouponNotFound
}

func (m *memCouponRepo) IncrementUses(_ context.Context, code string) error {
	if r, ok := m.rules[code]; ok {
		r.Uses++
	}
	return nil
}

type memOrderRepo struct {
	lastOrder *order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.lastOrder = o
	return nil
}

type memAPIKeyRepo struct {
	keys map[string]*auth.APIKey
}

func (m *memAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	if k, ok := m.keys[hash]; ok {
		return k, nil
	}
	return nil, auth.ErrUnauthorized
}

// --- Test fixture ---

const (
	testAPIKey = "test-secret-key"
	testPepper = "pepper"
)

var (
	brandNorth = product.Brand{ID: "northvale", Name: "Northvale"}
	brandEast  = product.Brand{ID: "eastmark", Name: "Eastmark"}
)

type fixture struct {
	router http.Handler
	orders *memOrderRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProductRepo{products: []product.Product{
		{
			ID:              "nv-classic-tee",
			Name:            "Classic Crew Neck Tee",
			Brand:           brandNorth,
			Price:           decimal.RequireFromString("899"),
			OfferPercentage: 10,
			Category:        "tshirts",
			Image:           product.Image{Thumbnail: "images/tee-thumbnail.jpg"},
			Sizes: []product.SizeStock{
				{Size: "M", Stock: 10},
				{Size: "L", Stock: 2},
			},
			AssignedCoupons: []string{"WELCOME10"},
		},
		{
			ID:    "em-denim-jacket",
			Name:  "Washed Denim Jacket",
			Brand: brandEast,
			Price: decimal.RequireFromString("3899"),
			Sizes: []product.SizeStock{{Size: "M", Stock: 5}},
		},
	}}

	couponRepo := &memCouponRepo{rules: map[string]*coupon.Rule{
		"SAVE200": {
			Code:          "SAVE200",
			DiscountType:  coupon.DiscountFixed,
			Value:         decimal.NewFromInt(200),
			MinOrderValue: decimal.NewFromInt(1500),
			Description:   "Flat 200 off on orders above 1500",
		},
	}}

	cartRepo := &memCartRepo{carts: make(map[string]*cart.Cart)}
	cartSvc := cart.NewService(cartRepo, products, zap.NewNop())

	orderRepo := &memOrderRepo{}
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderSvc := order.NewService(cartSvc, couponValidator, couponRepo, orderRepo,
		order.FeePolicy{Fee: decimal.NewFromInt(200), FreeAbove: decimal.NewFromInt(3000)},
		zap.NewNop(),
	)

	apikeys := &memAPIKeyRepo{keys: map[string]*auth.APIKey{
		auth.HashKey(testAPIKey, []byte(testPepper)): {
			ID:      "default",
			KeyHash: auth.HashKey(testAPIKey, []byte(testPepper)),
			Name:    "test key",
			Scopes:  []string{"create_order"},
		},
	}}

	h := New(
		Config{ImageBaseURL: "https://cdn.example.com", APIKeyPepper: []byte(testPepper)},
		cartSvc, products, couponValidator, orderSvc, apikeys,
	)
	return &fixture{router: h.Routes(), orders: orderRepo}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func addBody(productID, size string, qty int) map[string]any {
	return map[string]any{
		"email":     "alice@example.com",
		"productId": productID,
		"size":      size,
		"quantity":  qty,
	}
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/products", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	products := body["data"].(map[string]any)["products"].([]any)
	require.Len(t, products, 2)

	first := products[0].(map[string]any)
	assert.Equal(t, "nv-classic-tee", first["id"])
	assert.Equal(t, "Northvale", first["brand"].(map[string]any)["name"])
	assert.InDelta(t, 899.0, first["price"], 0.001)
	assert.InDelta(t, 809.1, first["effectivePrice"], 0.001)
	assert.Equal(t, "https://cdn.example.com/images/tee-thumbnail.jpg",
		first["image"].(map[string]any)["thumbnail"])
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/products/ghost", nil, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "product not found", body["message"])
}

func TestAddToCart(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	c := body["data"].(map[string]any)["cart"].(map[string]any)
	items := c["items"].([]any)
	require.Len(t, items, 1)

	item := items[0].(map[string]any)
	assert.InDelta(t, 899.0, item["unitPriceAtAdd"], 0.001)
	assert.InDelta(t, 809.1, item["effectiveUnitPrice"], 0.001)
	assert.InDelta(t, 1618.2, item["lineTotal"], 0.001)
	assert.EqualValues(t, 2, c["totalItems"])
	assert.InDelta(t, 1618.2, c["totalAmount"], 0.001)
}

func TestAddToCart_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/cart/add", map[string]any{
		"email":    "alice@example.com",
		"quantity": 1,
		"size":     "M",
		// productId missing
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAddToCart_BrandMismatch(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 1), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/cart/add", addBody("em-denim-jacket", "M", 1), nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Brand mismatch", body["error"])
	assert.Equal(t, "Northvale", body["currentBrand"].(map[string]any)["name"])
	assert.Equal(t, "Eastmark", body["newBrand"].(map[string]any)["name"])
}

func TestAddToCart_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "L", 3), nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Insufficient stock", body["error"])
	assert.EqualValues(t, 2, body["availableStock"])
}

func TestUpdateQuantity_RejectsZero(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPut, "/api/cart/update", map[string]any{
		"email":     "alice@example.com",
		"productId": "nv-classic-tee",
		"size":      "M",
		"quantity":  0,
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodDelete, "/api/cart/remove", map[string]any{
		"email":     "alice@example.com",
		"productId": "nv-classic-tee",
		"size":      "M",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := body["data"].(map[string]any)["cart"].(map[string]any)
	assert.Empty(t, c["items"])

	rec, body = f.do(t, http.MethodDelete, "/api/cart/clear", map[string]any{
		"email": "alice@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestSwitchBrand(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 1), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/cart/switch-brand", addBody("em-denim-jacket", "M", 1), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	c := body["data"].(map[string]any)["cart"].(map[string]any)
	items := c["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "em-denim-jacket", items[0].(map[string]any)["productId"])
}

func TestValidateCoupon(t *testing.T) {
	f := newFixture(t)

	// 899 * 0.9 * 2 = 1618.20 subtotal, above the SAVE200 minimum.
	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/offers/coupon/SAVE200/validate-cart", map[string]any{
		"email": "alice@example.com",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	coup := body["data"].(map[string]any)["coupon"].(map[string]any)
	assert.Equal(t, "SAVE200", coup["code"])
	assert.InDelta(t, 200.0, coup["discount"], 0.001)
	assert.InDelta(t, 1618.2, coup["subtotal"], 0.001)
	assert.InDelta(t, 1418.2, coup["payable"], 0.001)
}

func TestValidateCoupon_MinOrderNotMet(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 1), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/offers/coupon/SAVE200/validate-cart", map[string]any{
		"email": "alice@example.com",
	}, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "minimum order value")
}

func TestValidateCoupon_UnknownCode(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/offers/coupon/BOGUS/validate-cart", map[string]any{
		"email": "alice@example.com",
	}, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "coupon not found", body["message"])
}

func TestPlaceOrder_RequiresAPIKey(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"email": "alice@example.com",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "api key required", body["message"])

	rec, body = f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"email": "alice@example.com",
	}, map[string]string{"api_key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", body["message"])
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"email":      "alice@example.com",
		"couponCode": "SAVE200",
	}, map[string]string{"api_key": testAPIKey})

	require.Equal(t, http.StatusCreated, rec.Code)
	o := body["data"].(map[string]any)["order"].(map[string]any)
	assert.NotEmpty(t, o["id"])
	// 1618.20 subtotal + 200 delivery - 200 coupon.
	assert.InDelta(t, 1618.2, o["subtotal"], 0.001)
	assert.InDelta(t, 200.0, o["deliveryFee"], 0.001)
	assert.InDelta(t, 200.0, o["discount"], 0.001)
	assert.InDelta(t, 1618.2, o["total"], 0.001)
	require.NotNil(t, f.orders.lastOrder)

	// The cart is cleared after a successful order.
	rec, body = f.do(t, http.MethodGet, "/api/cart?email=alice%40example.com", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := body["data"].(map[string]any)["cart"].(map[string]any)
	assert.Empty(t, c["items"])
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"email": "alice@example.com",
	}, map[string]string{"api_key": testAPIKey})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", body["message"])
}

func TestIdempotencyKeyHeader(t *testing.T) {
	f := newFixture(t)

	headers := map[string]string{"Idempotency-Key": "req-1"}

	rec, _ := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), headers)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same request retried with the same key does not double the line.
	rec, body := f.do(t, http.MethodPost, "/api/cart/add", addBody("nv-classic-tee", "M", 2), headers)
	require.Equal(t, http.StatusOK, rec.Code)

	c := body["data"].(map[string]any)["cart"].(map[string]any)
	assert.EqualValues(t, 2, c["totalItems"])
}

func TestRespondError_Unwrapped(t *testing.T) {
	h := &Handler{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.respondError(rec, req, errors.Wrap(cart.ErrItemNotFound, "update quantity"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
