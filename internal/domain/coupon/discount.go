package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the discount for the given rule against a pre-discount order
// subtotal. It returns MinOrderNotMetError when the subtotal is below the
// rule's minimum order value. The computed amount is always within
// [0, subtotal]: percentage discounts are additionally capped by MaxDiscount
// when set, fixed discounts by the subtotal itself.
func Apply(rule *Rule, subtotal decimal.Decimal) (Discount, error) {
	if rule.MinOrderValue.IsPositive() && subtotal.LessThan(rule.MinOrderValue) {
		return Discount{}, &MinOrderNotMetError{Code: rule.Code, Required: rule.MinOrderValue}
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, rule.MaxDiscount)
		}
	case DiscountFixed:
		amount = rule.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	amount = clamp(amount, subtotal).Round(2)

	return Discount{
		Code:        rule.Code,
		Amount:      amount,
		Description: rule.Description,
	}, nil
}

// clamp bounds the discount to [0, subtotal].
func clamp(amount, subtotal decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}
