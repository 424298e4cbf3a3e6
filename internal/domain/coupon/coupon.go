package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order
	// subtotal, optionally capped by Rule.MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrCouponNotFound is returned when no active coupon exists for a code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its
	// allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// MinOrderNotMetError indicates the order subtotal is below the coupon's
// minimum order value. It carries the required amount so the caller can tell
// the shopper exactly how much is missing; the coupon is never silently
// capped instead.
type MinOrderNotMetError struct {
	Code     string
	Required decimal.Decimal
}

func (e *MinOrderNotMetError) Error() string {
	return fmt.Sprintf("minimum order value of %s required for coupon %s", e.Required.StringFixed(2), e.Code)
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MinOrderValue is the pre-discount subtotal the order must reach before
	// the coupon applies. Zero means no minimum.
	MinOrderValue decimal.Decimal
	// MaxDiscount caps percentage discounts. Zero means uncapped.
	MaxDiscount decimal.Decimal
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
}

// Discount holds the computed discount for a validated coupon.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	// FindByCode returns the active rule for code, or ErrCouponNotFound.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// IncrementUses records one consumption of the coupon. Called at
	// order-creation time, not during validation.
	IncrementUses(ctx context.Context, code string) error
}

// Validator validates a coupon code against an order subtotal and returns the
// computed discount. Validation is read-only: it never consumes a use.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error)
}
