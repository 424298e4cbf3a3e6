package handler

import (
	"net/http"
	"time"

	"github.com/casashop/cart-api/internal/domain/cart"
	"github.com/casashop/cart-api/internal/domain/pricing"
)

// cartDTO is the wire representation of a cart snapshot. Totals are derived
// on the way out; they are never independently mutable fields.
type cartDTO struct {
	Email       string        `json:"email,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	Items       []lineItemDTO `json:"items"`
	TotalItems  int           `json:"totalItems"`
	TotalAmount float64       `json:"totalAmount"`
	UpdatedAt   *time.Time    `json:"updatedAt,omitempty"`
}

type lineItemDTO struct {
	ProductID          string   `json:"productId"`
	Size               string   `json:"size"`
	ColorVariant       string   `json:"colorVariant,omitempty"`
	Quantity           int      `json:"quantity"`
	UnitPriceAtAdd     float64  `json:"unitPriceAtAdd"`
	OfferPercentage    int      `json:"offerPercentage"`
	EffectiveUnitPrice float64  `json:"effectiveUnitPrice"`
	LineTotal          float64  `json:"lineTotal"`
	Brand              brandDTO `json:"brand"`
}

func toCartDTO(c *cart.Cart) cartDTO {
	dto := cartDTO{
		Email:       c.Identity.Email,
		Phone:       c.Identity.Phone,
		Items:       make([]lineItemDTO, len(c.Items)),
		TotalItems:  c.TotalItems(),
		TotalAmount: c.TotalAmount().InexactFloat64(),
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		dto.UpdatedAt = &t
	}
	for i := range c.Items {
		li := &c.Items[i]
		effective := pricing.EffectiveUnitPrice(li.UnitPriceAtAdd, li.OfferPercentage)
		dto.Items[i] = lineItemDTO{
			ProductID:          li.ProductID,
			Size:               li.Size,
			ColorVariant:       li.ColorVariant,
			Quantity:           li.Quantity,
			UnitPriceAtAdd:     li.UnitPriceAtAdd.InexactFloat64(),
			OfferPercentage:    li.OfferPercentage,
			EffectiveUnitPrice: pricing.Round2(effective).InexactFloat64(),
			LineTotal:          pricing.Round2(li.LineTotal()).InexactFloat64(),
			Brand:              brandDTO{ID: li.Brand.ID, Name: li.Brand.Name},
		}
	}
	return dto
}

type cartData struct {
	Cart cartDTO `json:"cart"`
}

// identityReq is embedded in every cart mutation body. Email is canonical;
// phone is accepted as a legacy fallback.
type identityReq struct {
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,min=7"`
}

func (ir identityReq) identity() cart.Identity {
	return cart.NewIdentity(ir.Email, ir.Phone)
}

type addToCartReq struct {
	identityReq
	ProductID    string `json:"productId" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	Size         string `json:"size" validate:"required"`
	ColorVariant string `json:"colorVariant"`
}

type updateQuantityReq struct {
	identityReq
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type removeFromCartReq struct {
	identityReq
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	identity := cart.NewIdentity(r.URL.Query().Get("email"), r.URL.Query().Get("phone"))

	c, err := h.carts.Get(r.Context(), identity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cartData{Cart: toCartDTO(c)})
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.AddItem(r.Context(), req.identity(), cart.AddItemParams{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		Size:           req.Size,
		ColorVariant:   req.ColorVariant,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cartData{Cart: toCartDTO(c)})
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), req.identity(),
		req.ProductID, req.Size, req.Quantity, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cartData{Cart: toCartDTO(c)})
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	var req removeFromCartReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), req.identity(), req.ProductID, req.Size)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cartData{Cart: toCartDTO(c)})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	var req identityReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.Clear(r.Context(), req.identity())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cartData{Cart: toCartDTO(c)})
}

func (h *Handler) switchBrand(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := h.decodeValid(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.SwitchBrand(r.Context(), req.identity(), cart.AddItemParams{
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		Size:         req.Size,
		ColorVariant: req.ColorVariant,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cartData{Cart: toCartDTO(c)})
}
