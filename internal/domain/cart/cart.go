// Package cart implements the authoritative shopping cart: line item
// bookkeeping, the single-brand invariant, and the conflict resolution
// protocol for switching brands.
package cart

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/casashop/cart-api/internal/domain/pricing"
	"github.com/casashop/cart-api/internal/domain/product"
)

// Identity is the cart owner's identity. Email is canonical; Phone exists
// only as a fallback for legacy lookups of carts created before email became
// mandatory.
type Identity struct {
	Email string
	Phone string
}

// NewIdentity canonicalizes the raw identity fields: the email is trimmed and
// lowercased so case or whitespace variants of one address always resolve to
// the same cart, lock, and idempotency scope. The phone is trimmed.
func NewIdentity(email, phone string) Identity {
	return Identity{
		Email: strings.ToLower(strings.TrimSpace(email)),
		Phone: strings.TrimSpace(phone),
	}
}

// Key returns the lookup key for this identity: the email when present,
// otherwise the phone number.
func (id Identity) Key() string {
	if id.Email != "" {
		return id.Email
	}
	return id.Phone
}

// LineItem is one (product, size, color) entry in a cart. Lines are unique on
// (ProductID, Size); ColorVariant is informational for variant products.
type LineItem struct {
	ProductID    string
	Size         string
	ColorVariant string
	Quantity     int
	// UnitPriceAtAdd is the catalog price captured when the line was first
	// added. Later catalog price changes never alter it.
	UnitPriceAtAdd decimal.Decimal
	// OfferPercentage is the product-level discount snapshot, 0-100.
	OfferPercentage int
	Brand           product.Brand
}

// pricingItem adapts the line for the pricing calculator.
func (li *LineItem) pricingItem() pricing.Item {
	return pricing.Item{
		UnitPrice:       li.UnitPriceAtAdd,
		OfferPercentage: li.OfferPercentage,
		Quantity:        li.Quantity,
	}
}

// LineTotal returns the line's post-offer total, unrounded.
func (li *LineItem) LineTotal() decimal.Decimal {
	return pricing.LineTotal(li.pricingItem())
}

// Cart holds the authoritative cart snapshot for one owner identity. Items
// preserve insertion order for display. All items share one brand; the
// service enforces that invariant on every mutation.
type Cart struct {
	Identity  Identity
	Items     []LineItem
	UpdatedAt time.Time
}

// Brand returns the cart's brand and whether the cart currently has one
// (an empty cart has none).
func (c *Cart) Brand() (product.Brand, bool) {
	if len(c.Items) == 0 {
		return product.Brand{}, false
	}
	return c.Items[0].Brand, true
}

// find returns the index of the line matching (productID, size), or -1.
func (c *Cart) find(productID, size string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Size == size {
			return i
		}
	}
	return -1
}

// Subtotal returns the pre-coupon, post-offer cart total, unrounded.
func (c *Cart) Subtotal() decimal.Decimal {
	items := make([]pricing.Item, len(c.Items))
	for i := range c.Items {
		items[i] = c.Items[i].pricingItem()
	}
	return pricing.Subtotal(items)
}

// TotalAmount is the subtotal rounded for display. Derived, never stored.
func (c *Cart) TotalAmount() decimal.Decimal {
	return pricing.Round2(c.Subtotal())
}

// TotalItems is the sum of line quantities. Derived, never stored.
func (c *Cart) TotalItems() int {
	total := 0
	for i := range c.Items {
		total += c.Items[i].Quantity
	}
	return total
}

// clone returns a deep copy so snapshots handed to callers (and the
// idempotency cache) are immune to later mutation.
func (c *Cart) clone() *Cart {
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// Repository persists cart snapshots. Load returns an empty cart when none
// exists yet (carts are created lazily); Replace overwrites the stored
// snapshot wholesale, which is the only write path. There is no partial
// merge that could drift from the stored truth.
type Repository interface {
	Load(ctx context.Context, identity Identity) (*Cart, error)
	Replace(ctx context.Context, cart *Cart) error
}
