package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/casashop/cart-api/internal/domain/cart"
	"github.com/casashop/cart-api/internal/domain/coupon"
	"github.com/casashop/cart-api/internal/domain/order"
	"github.com/casashop/cart-api/internal/domain/product"
)

// envelope is the standard success response body.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// failure is the standard error response body. Error distinguishes structured
// conflicts ("Brand mismatch", "Insufficient stock"); Message carries the
// human-readable reason.
type failure struct {
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	Message        string    `json:"message"`
	CurrentBrand   *brandDTO `json:"currentBrand,omitempty"`
	NewBrand       *brandDTO `json:"newBrand,omitempty"`
	AvailableStock *int      `json:"availableStock,omitempty"`
}

type brandDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failure{Message: message})
}

// rootCause unwraps to the innermost error so wrapped sentinels render
// without their wrap prefixes.
func rootCause(err error) error {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
}

// decodeValid decodes the JSON body into dst and runs struct validation.
func (h *Handler) decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// respondError maps domain errors to HTTP responses. Structured conflicts get
// their dedicated bodies; everything unexpected becomes a logged 500.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var mismatch *cart.BrandMismatchError
	if errors.As(err, &mismatch) {
		writeJSON(w, http.StatusConflict, failure{
			Error:        "Brand mismatch",
			Message:      mismatch.Error(),
			CurrentBrand: &brandDTO{ID: mismatch.CurrentBrand.ID, Name: mismatch.CurrentBrand.Name},
			NewBrand:     &brandDTO{ID: mismatch.NewBrand.ID, Name: mismatch.NewBrand.Name},
		})
		return
	}

	var stock *cart.InsufficientStockError
	if errors.As(err, &stock) {
		writeJSON(w, http.StatusConflict, failure{
			Error:          "Insufficient stock",
			Message:        stock.Error(),
			AvailableStock: &stock.Available,
		})
		return
	}

	var degraded *cart.EmptyAfterSwitchError
	if errors.As(err, &degraded) {
		// Degraded but recoverable: the cart was cleared, the pending
		// product was not added.
		writeJSON(w, http.StatusUnprocessableEntity, failure{
			Error:   "Cart cleared",
			Message: degraded.Error(),
		})
		return
	}

	var minOrder *coupon.MinOrderNotMetError
	switch {
	case errors.As(err, &minOrder):
		respondMessage(w, http.StatusUnprocessableEntity, minOrder.Error())
	case errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		respondMessage(w, http.StatusUnprocessableEntity, rootCause(err).Error())
	case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, product.ErrNotFound):
		respondMessage(w, http.StatusNotFound, rootCause(err).Error())
	case errors.Is(err, cart.ErrIdentityRequired),
		errors.Is(err, cart.ErrNonPositiveQuantity),
		errors.Is(err, cart.ErrSizeUnavailable),
		errors.Is(err, order.ErrEmptyCart):
		respondMessage(w, http.StatusBadRequest, rootCause(err).Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondMessage(w, http.StatusGatewayTimeout, "request timed out")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "internal error")
	}
}
