// Package pricing holds the pure price arithmetic for carts and orders.
//
// All computation uses decimal arithmetic. Intermediate values are kept at
// full precision; rounding to currency-minor-unit precision (2 places)
// happens only at the total/display boundary, so repeated line computations
// cannot accumulate drift.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Item is the minimal view of a cart line needed for price arithmetic.
type Item struct {
	// UnitPrice is the price snapshot captured when the line was added.
	UnitPrice decimal.Decimal
	// OfferPercentage is the product-level promotional discount, 0-100.
	OfferPercentage int
	Quantity        int
}

// EffectiveUnitPrice returns the unit price after applying the product-level
// offer percentage. An offer of 0 returns the snapshot price unchanged.
func EffectiveUnitPrice(unit decimal.Decimal, offerPercentage int) decimal.Decimal {
	if offerPercentage <= 0 {
		return unit
	}
	pct := decimal.NewFromInt(int64(offerPercentage))
	return unit.Mul(hundred.Sub(pct)).Div(hundred)
}

// LineTotal returns the effective unit price multiplied by the line quantity,
// unrounded.
func LineTotal(item Item) decimal.Decimal {
	unit := EffectiveUnitPrice(item.UnitPrice, item.OfferPercentage)
	return unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal returns the sum of line totals: the pre-coupon, post-offer cart
// total, unrounded.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item))
	}
	return sum
}

// FinalTotal returns subtotal + deliveryFee - discount, floored at zero and
// rounded to 2 decimal places. The clamped return reports whether the floor
// engaged; a clamp means an upstream discount computation produced more
// discount than order value, which callers are expected to log.
func FinalTotal(subtotal, deliveryFee, discount decimal.Decimal) (total decimal.Decimal, clamped bool) {
	total = subtotal.Add(deliveryFee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero, true
	}
	return total.Round(2), false
}

// Round2 rounds a monetary amount to 2 decimal places for display or storage.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
