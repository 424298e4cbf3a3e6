// Package handler exposes the cart, catalog, coupon, and order APIs over
// JSON HTTP.
package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/casashop/cart-api/internal/domain/auth"
	"github.com/casashop/cart-api/internal/domain/cart"
	"github.com/casashop/cart-api/internal/domain/coupon"
	"github.com/casashop/cart-api/internal/domain/order"
	"github.com/casashop/cart-api/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// APIKeyPepper is the HMAC pepper for API key hashing.
	APIKeyPepper []byte
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	carts    *cart.Service
	products product.Repository
	coupons  coupon.Validator
	orders   *order.Service
	apikeys  auth.Repository

	validate     *validator.Validate
	imageBaseURL string
	pepper       []byte
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	carts *cart.Service,
	products product.Repository,
	coupons coupon.Validator,
	orders *order.Service,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		carts:        carts,
		products:     products,
		coupons:      coupons,
		orders:       orders,
		apikeys:      apikeys,
		validate:     validator.New(),
		imageBaseURL: cfg.ImageBaseURL,
		pepper:       cfg.APIKeyPepper,
	}
}

// Routes returns the API router. All endpoints live under /api; order
// placement additionally requires an API key.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	api.HandleFunc("/cart/add", h.addToCart).Methods(http.MethodPost)
	api.HandleFunc("/cart/update", h.updateQuantity).Methods(http.MethodPut)
	api.HandleFunc("/cart/remove", h.removeFromCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/clear", h.clearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/switch-brand", h.switchBrand).Methods(http.MethodPost)

	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)

	api.HandleFunc("/offers/coupon/{code}/validate-cart", h.validateCoupon).Methods(http.MethodPost)

	api.Handle("/orders", h.requireAPIKey(http.HandlerFunc(h.placeOrder))).Methods(http.MethodPost)

	return r
}
