package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/casashop/cart-api/internal/domain/pricing"
	"github.com/casashop/cart-api/internal/domain/product"
)

type productDTO struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Brand           brandDTO       `json:"brand"`
	Price           float64        `json:"price"`
	OfferPercentage int            `json:"offerPercentage"`
	EffectivePrice  float64        `json:"effectivePrice"`
	Category        string         `json:"category"`
	Image           imageDTO       `json:"image"`
	Sizes           []sizeStockDTO `json:"sizes"`
	AssignedCoupons []string       `json:"assignedCoupons,omitempty"`
}

type imageDTO struct {
	Thumbnail string `json:"thumbnail"`
	Mobile    string `json:"mobile"`
	Tablet    string `json:"tablet"`
	Desktop   string `json:"desktop"`
}

type sizeStockDTO struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

func (h *Handler) toProductDTO(p *product.Product) productDTO {
	effective := pricing.EffectiveUnitPrice(p.Price, p.OfferPercentage)
	dto := productDTO{
		ID:              p.ID,
		Name:            p.Name,
		Brand:           brandDTO{ID: p.Brand.ID, Name: p.Brand.Name},
		Price:           p.Price.InexactFloat64(),
		OfferPercentage: p.OfferPercentage,
		EffectivePrice:  pricing.Round2(effective).InexactFloat64(),
		Category:        p.Category,
		Image: imageDTO{
			Thumbnail: h.imageURL(p.Image.Thumbnail),
			Mobile:    h.imageURL(p.Image.Mobile),
			Tablet:    h.imageURL(p.Image.Tablet),
			Desktop:   h.imageURL(p.Image.Desktop),
		},
		Sizes:           make([]sizeStockDTO, len(p.Sizes)),
		AssignedCoupons: p.AssignedCoupons,
	}
	for i, s := range p.Sizes {
		dto.Sizes[i] = sizeStockDTO{Size: s.Size, Stock: s.Stock}
	}
	return dto
}

// imageURL prefixes relative image paths with the configured base URL.
// Absolute URLs pass through untouched.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	dtos := make([]productDTO, len(products))
	for i := range products {
		dtos[i] = h.toProductDTO(&products[i])
	}
	respondData(w, http.StatusOK, struct {
		Products []productDTO `json:"products"`
	}{Products: dtos})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, struct {
		Product productDTO `json:"product"`
	}{Product: h.toProductDTO(p)})
}
