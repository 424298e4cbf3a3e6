package cart

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/casashop/cart-api/internal/domain/product"
)

var (
	// ErrIdentityRequired is returned when neither email nor phone is given.
	ErrIdentityRequired = errors.New("cart identity required")
	// ErrItemNotFound is returned when a mutation targets a line that is not
	// in the cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrNonPositiveQuantity is returned when a mutation carries a quantity
	// of zero or less. Removal is only ever the explicit RemoveItem
	// operation; UpdateQuantity never converts zero into a remove.
	ErrNonPositiveQuantity = errors.New("quantity must be greater than 0")
	// ErrSizeUnavailable is returned when the product is not offered in the
	// requested size.
	ErrSizeUnavailable = errors.New("size not available for product")
)

// BrandMismatchError signals a violation of the single-brand invariant: the
// product being added belongs to a different brand than the cart's current
// contents. It carries both brands so the caller can surface a resolution
// choice (switch brand / keep current) instead of a partial success.
type BrandMismatchError struct {
	CurrentBrand product.Brand
	NewBrand     product.Brand
}

func (e *BrandMismatchError) Error() string {
	return fmt.Sprintf("cart holds items from %s; cannot add items from %s", e.CurrentBrand.Name, e.NewBrand.Name)
}

// InsufficientStockError signals that the requested quantity exceeds the
// catalog stock for the product size. Available reports how many can still be
// requested so the caller can offer a corrected quantity.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: %d available", e.ProductID, e.Size, e.Available)
}

// EmptyAfterSwitchError reports a degraded-but-recoverable outcome of brand
// switching: the cart was cleared successfully but re-adding the pending
// product failed, leaving the cart empty. The shopper can simply add the
// product again.
type EmptyAfterSwitchError struct {
	Err error
}

func (e *EmptyAfterSwitchError) Error() string {
	return fmt.Sprintf("cart cleared but pending product could not be added: %v", e.Err)
}

func (e *EmptyAfterSwitchError) Unwrap() error { return e.Err }
