package handler

import (
	"net/http"
	"time"

	"github.com/casashop/cart-api/internal/domain/order"
)

type placeOrderReq struct {
	identityReq
	CouponCode string `json:"couponCode"`
}

type orderDTO struct {
	ID          string         `json:"id"`
	Email       string         `json:"email,omitempty"`
	Items       []orderItemDTO `json:"items"`
	Subtotal    float64        `json:"subtotal"`
	DeliveryFee float64        `json:"deliveryFee"`
	Discount    float64        `json:"discount"`
	Total       float64        `json:"total"`
	CouponCode  string         `json:"couponCode,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type orderItemDTO struct {
	ProductID       string  `json:"productId"`
	Size            string  `json:"size"`
	ColorVariant    string  `json:"colorVariant,omitempty"`
	Quantity        int     `json:"quantity"`
	UnitPriceAtAdd  float64 `json:"unitPriceAtAdd"`
	OfferPercentage int     `json:"offerPercentage"`
}

func toOrderDTO(o *order.Order) orderDTO {
	dto := orderDTO{
		ID:          o.ID,
		Email:       o.Email,
		Items:       make([]orderItemDTO, len(o.Items)),
		Subtotal:    o.Subtotal.InexactFloat64(),
		DeliveryFee: o.DeliveryFee.InexactFloat64(),
		Discount:    o.Discount.InexactFloat64(),
		Total:       o.Total.InexactFloat64(),
		CouponCode:  o.CouponCode,
		CreatedAt:   o.CreatedAt,
	}
	for i, it := range o.Items {
		dto.Items[i] = orderItemDTO{
			ProductID:       it.ProductID,
			Size:            it.Size,
			ColorVariant:    it.ColorVariant,
			Quantity:        it.Quantity,
			UnitPriceAtAdd:  it.UnitPriceAtAdd.InexactFloat64(),
			OfferPercentage: it.OfferPercentage,
		}
	}
	return dto
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req.identity(), req.CouponCode)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, struct {
		Order orderDTO `json:"order"`
	}{Order: toOrderDTO(o)})
}
