package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/casashop/cart-api/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_order_value, max_discount,
		description, valid_from, valid_until, max_uses, uses
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_order_value,
		max_discount, description, valid_from, valid_until, max_uses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			min_order_value = EXCLUDED.min_order_value, max_discount = EXCLUDED.max_discount,
			description = EXCLUDED.description, valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until, max_uses = EXCLUDED.max_uses,
			active = EXCLUDED.active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrCouponNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the coupon code.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

// Upsert writes a coupon rule. Used by seeding and bulk ingest.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule, active bool) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, string(rule.DiscountType), rule.Value, rule.MinOrderValue,
		rule.MaxDiscount, rule.Description, rule.ValidFrom, rule.ValidUntil,
		rule.MaxUses, active,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		value        decimal.Decimal
		minOrder     decimal.Decimal
		maxDiscount  decimal.Decimal
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
	)
	err := row.Scan(
		&rule.Code, &discountType, &value, &minOrder, &maxDiscount,
		&rule.Description, &validFrom, &validUntil, &maxUses, &uses,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.Value = value
	rule.MinOrderValue = minOrder
	rule.MaxDiscount = maxDiscount
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
