package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/casashop/cart-api/internal/domain/pricing"
)

type validateCouponReq struct {
	identityReq
}

type couponResultDTO struct {
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	Description string  `json:"description,omitempty"`
	Subtotal    float64 `json:"subtotal"`
	Payable     float64 `json:"payable"`
}

// validateCoupon checks a coupon against the identity's current cart without
// consuming a use. The authoritative application happens at order placement.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.Get(r.Context(), req.identity())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	subtotal := c.Subtotal()
	d, err := h.coupons.Validate(r.Context(), mux.Vars(r)["code"], subtotal)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// Payable here excludes delivery; the cart screen shows goods value only.
	payable, _ := pricing.FinalTotal(subtotal, decimal.Zero, d.Amount)
	respondData(w, http.StatusOK, struct {
		Coupon couponResultDTO `json:"coupon"`
	}{Coupon: couponResultDTO{
		Code:        d.Code,
		Discount:    d.Amount.InexactFloat64(),
		Description: d.Description,
		Subtotal:    pricing.Round2(subtotal).InexactFloat64(),
		Payable:     payable.InexactFloat64(),
	}})
}
