package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencartlab/cart-service/internal/cache"
	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository/memory"
	"github.com/opencartlab/cart-service/internal/service"
	"github.com/opencartlab/cart-service/internal/txn"
)

func newTestServer(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.NewStore()
	coord := txn.NewCoordinator(store)
	cartSvc := service.NewCartService(coord, store.Stores(), nil)
	couponSvc := service.NewCouponService(store.Coupons(), cache.NewCouponCache(nil))
	productSvc := service.NewProductService(store.Products())
	h := NewHandler(cartSvc, couponSvc, productSvc)
	return store, h.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) entity.CartView {
	t.Helper()
	var view entity.CartView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartRoutes_RequireUserHeader(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/cart/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "error")
}

func TestListProducts(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 9.99, Stock: 3, Status: entity.ProductActive})

	rec := doJSON(t, h, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var products []entity.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "widget", products[0].Name)

	rec = doJSON(t, h, http.MethodGet, "/api/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddItemFlow(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 10, Stock: 5, Status: entity.ProductActive})

	rec := doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, 20.0, view.Subtotal)

	rec = doJSON(t, h, http.MethodGet, "/api/cart/", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20.0, decodeView(t, rec).Total)

	// Another user's cart stays empty.
	rec = doJSON(t, h, http.MethodGet, "/api/cart/", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeView(t, rec).Items)
}

func TestAddItem_AcceptsCatalogStyleIDs(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "prod-001", Name: "headphones", Price: 349.99, Stock: 50, Status: entity.ProductActive})

	// IDs with hyphens, as shipped by the seed catalog, must pass request
	// validation.
	rec := doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "prod-001", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "prod-001", view.Items[0].ProductID)

	rec = doJSON(t, h, http.MethodPatch, "/api/cart/items", "u1", entity.UpdateItems{
		Items: []entity.ItemUpdate{{ProductID: "prod-001", Quantity: 3}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeView(t, rec).Items[0].Quantity)
}

func TestAddItem_Statuses(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 10, Stock: 1, Status: entity.ProductActive})

	// Validation failure: quantity below minimum.
	rec := doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", map[string]any{"product_id": "p1", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Not enough stock.
	rec = doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "p1", Quantity: 2})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown product.
	rec = doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "ghost", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveItemAndClear(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 10, Stock: 5, Status: entity.ProductActive})

	rec := doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/cart/items/p1", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeView(t, rec).Items)

	// Removing a line that is not there.
	rec = doJSON(t, h, http.MethodDelete, "/api/cart/items/p1", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/cart/", "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateItemsEndpoint(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 10, Stock: 10, Status: entity.ProductActive})

	rec := doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/cart/items", "u1", entity.UpdateItems{
		Items: []entity.ItemUpdate{{ProductID: "p1", Quantity: 5}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)

	// Empty batch fails validation.
	rec = doJSON(t, h, http.MethodPatch, "/api/cart/items", "u1", entity.UpdateItems{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCouponEndpoints(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 100, Stock: 5, Status: entity.ProductActive})

	rec := doJSON(t, h, http.MethodPost, "/api/admin/coupons/", "admin", entity.CreateCoupon{
		Code: "save10", DiscountType: "percentage", DiscountValue: 10, MaxDiscount: 5,
		ValidUntil: time.Now().Add(time.Hour), ForAllUsers: true, ForAllProducts: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created entity.Coupon
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "SAVE10", created.Code, "codes are stored uppercase")
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "p1", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/cart/coupon", "u1", entity.ApplyCoupon{Code: "save10"})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, 5.0, view.Discount)
	assert.Equal(t, 95.0, view.Total)

	rec = doJSON(t, h, http.MethodDelete, "/api/cart/coupon", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeView(t, rec).Coupon)

	rec = doJSON(t, h, http.MethodDelete, "/api/admin/coupons/"+created.ID, "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/coupons/"+created.ID, "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookupCoupon(t *testing.T) {
	store, h := newTestServer(t)
	require.NoError(t, store.Coupons().Create(context.Background(), &entity.Coupon{
		ID: "c1", Code: "SAVE10", Description: "ten percent off",
		DiscountType: entity.DiscountPercentage, DiscountValue: 10, MinPurchase: 50,
		ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
		ForAllUsers: true, ForAllProducts: true, Active: true,
	}))

	// Lowercase codes normalize; the response carries the redeemability
	// summary only.
	rec := doJSON(t, h, http.MethodGet, "/api/coupons/save10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "SAVE10", body["code"])
	assert.Equal(t, true, body["valid"])
	assert.NotContains(t, body, "user_ids")

	rec = doJSON(t, h, http.MethodGet, "/api/coupons/NOSUCH", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyCoupon_BadCases(t *testing.T) {
	store, h := newTestServer(t)
	store.PutProduct(entity.Product{ID: "p1", Name: "widget", Price: 10, Stock: 5, Status: entity.ProductActive})
	require.NoError(t, store.Coupons().Create(context.Background(), &entity.Coupon{
		ID: "c1", Code: "BYGONE", DiscountType: entity.DiscountFixed, DiscountValue: 5,
		ValidFrom: time.Now().Add(-48 * time.Hour), ValidUntil: time.Now().Add(-24 * time.Hour),
		ForAllUsers: true, ForAllProducts: true, Active: true,
	}))

	rec := doJSON(t, h, http.MethodPost, "/api/cart/items", "u1", entity.AddItem{ProductID: "p1", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	// Expired coupon.
	rec = doJSON(t, h, http.MethodPost, "/api/cart/coupon", "u1", entity.ApplyCoupon{Code: "BYGONE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown code.
	rec = doJSON(t, h, http.MethodPost, "/api/cart/coupon", "u1", entity.ApplyCoupon{Code: "NOSUCH"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing body field.
	rec = doJSON(t, h, http.MethodPost, "/api/cart/coupon", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCouponAdmin_Update(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/coupons/", "admin", entity.CreateCoupon{
		Code: "FLAT5", DiscountType: "fixed", DiscountValue: 5,
		ValidUntil: time.Now().Add(time.Hour), ForAllUsers: true, ForAllProducts: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created entity.Coupon
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	inactive := false
	rec = doJSON(t, h, http.MethodPatch, "/api/admin/coupons/"+created.ID, "admin", entity.UpdateCoupon{Active: &inactive})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated entity.Coupon
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.False(t, updated.Active)

	// Structural invariants still hold on update.
	bad := -1.0
	rec = doJSON(t, h, http.MethodPatch, "/api/admin/coupons/"+created.ID, "admin", entity.UpdateCoupon{DiscountValue: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
