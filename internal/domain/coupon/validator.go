package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
//
// Validation is deliberately read-only. The usage counter is incremented by
// the order service once an order actually carrying the coupon is persisted,
// so a shopper checking a code in the cart screen does not burn a use.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the rule for code, checks temporal validity and usage
// limits, and applies it to the subtotal. Each rejection carries its specific
// reason: not-found, expired, usage limit, or minimum order not met.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	d, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}

	return &d, nil
}
