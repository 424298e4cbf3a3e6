package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/casashop/cart-api/internal/domain/cart"
	"github.com/casashop/cart-api/internal/domain/coupon"
	"github.com/casashop/cart-api/internal/domain/pricing"
)

// ErrEmptyCart is returned when placing an order on an empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// CartStore is the slice of the cart service the order flow needs.
type CartStore interface {
	Get(ctx context.Context, identity cart.Identity) (*cart.Cart, error)
	Clear(ctx context.Context, identity cart.Identity) (*cart.Cart, error)
}

// FeePolicy computes the delivery fee for an order: a flat fee, waived once
// the subtotal reaches FreeAbove (when FreeAbove is positive).
type FeePolicy struct {
	Fee       decimal.Decimal
	FreeAbove decimal.Decimal
}

// DeliveryFee returns the fee owed for the given subtotal.
func (p FeePolicy) DeliveryFee(subtotal decimal.Decimal) decimal.Decimal {
	if p.FreeAbove.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeAbove) {
		return decimal.Zero
	}
	return p.Fee
}

// Service turns a cart into a persisted order. Coupon application here is the
// authoritative one: whatever a cart-screen validation said earlier, the
// coupon is re-validated and consumed at order-creation time.
type Service struct {
	carts   CartStore
	coupons coupon.Validator
	usage   coupon.Repository
	orders  Repository
	fees    FeePolicy
	lg      *zap.Logger
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts CartStore,
	coupons coupon.Validator,
	usage coupon.Repository,
	orders Repository,
	fees FeePolicy,
	lg *zap.Logger,
) *Service {
	return &Service{
		carts:   carts,
		coupons: coupons,
		usage:   usage,
		orders:  orders,
		fees:    fees,
		lg:      lg,
	}
}

// PlaceOrder snapshots the identity's cart, applies the optional coupon,
// computes the final total, persists the order, consumes the coupon use, and
// clears the cart.
func (s *Service) PlaceOrder(ctx context.Context, identity cart.Identity, couponCode string) (*Order, error) {
	c, err := s.carts.Get(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := c.Subtotal()

	discount := decimal.Zero
	if couponCode != "" {
		d, err := s.coupons.Validate(ctx, couponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = d.Amount
	}

	deliveryFee := s.fees.DeliveryFee(subtotal)

	total, clamped := pricing.FinalTotal(subtotal, deliveryFee, discount)
	if clamped {
		// The floor is defensive, not a silent correction: an engaged clamp
		// means the discount computation overshot the order value.
		s.lg.Warn("final total clamped to zero",
			zap.String("identity", identity.Key()),
			zap.String("subtotal", subtotal.String()),
			zap.String("discount", discount.String()),
			zap.String("coupon", couponCode),
		)
	}

	items := make([]OrderItem, len(c.Items))
	for i, li := range c.Items {
		items[i] = OrderItem{
			ProductID:       li.ProductID,
			Size:            li.Size,
			ColorVariant:    li.ColorVariant,
			Quantity:        li.Quantity,
			UnitPriceAtAdd:  li.UnitPriceAtAdd,
			OfferPercentage: li.OfferPercentage,
		}
	}

	o := &Order{
		ID:          uuid.New().String(),
		Email:       identity.Email,
		Items:       items,
		Subtotal:    pricing.Round2(subtotal),
		DeliveryFee: deliveryFee,
		Discount:    discount,
		Total:       total,
		CouponCode:  couponCode,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if couponCode != "" {
		if err := s.usage.IncrementUses(ctx, couponCode); err != nil {
			// The order is already placed; losing one usage tick is better
			// than failing the order.
			s.lg.Error("increment coupon uses failed",
				zap.String("coupon", couponCode),
				zap.Error(err),
			)
		}
	}

	if _, err := s.carts.Clear(ctx, identity); err != nil {
		s.lg.Error("clear cart after order failed",
			zap.String("identity", identity.Key()),
			zap.Error(err),
		)
	}

	return o, nil
}
