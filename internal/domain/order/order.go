package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a placed order with its full pricing breakdown.
type Order struct {
	ID          string
	Email       string
	Items       []OrderItem
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	CouponCode  string
	CreatedAt   time.Time
}

// OrderItem is a cart line frozen into an order. JSON tags match the shape
// stored in the orders JSONB column.
type OrderItem struct {
	ProductID       string          `json:"product_id"`
	Size            string          `json:"size"`
	ColorVariant    string          `json:"color_variant,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPriceAtAdd  decimal.Decimal `json:"unit_price_at_add"`
	OfferPercentage int             `json:"offer_percentage"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
