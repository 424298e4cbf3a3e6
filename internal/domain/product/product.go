package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Brand is the canonical brand reference. The storage layer resolves whatever
// shape a brand is persisted in into this one form; nothing downstream ever
// sees a bare brand id or name on its own.
type Brand struct {
	ID   string
	Name string
}

// SizeStock holds the available stock for one size of a product.
type SizeStock struct {
	Size  string
	Stock int
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID    string
	Name  string
	Brand Brand
	// Price is the current catalog price. Carts snapshot it at add time, so
	// later catalog changes never alter lines already in a cart.
	Price decimal.Decimal
	// OfferPercentage is a product-level, always-on discount (0-100),
	// independent of any coupon.
	OfferPercentage int
	Category        string
	Image           Image
	Sizes           []SizeStock
	// AssignedCoupons lists coupon codes pre-attached to this product. They
	// are surfaced to shoppers as a selectable list; applying one follows the
	// same discount path as a manually entered code.
	AssignedCoupons []string
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// StockFor returns the stock for the given size and whether the product is
// offered in that size at all.
func (p *Product) StockFor(size string) (int, bool) {
	for _, s := range p.Sizes {
		if s.Size == size {
			return s.Stock, true
		}
	}
	return 0, false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
