package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/casashop/cart-api/internal/domain/cart"
)

const (
	// The email match sorts first so that when the email and the phone point
	// at different carts, the email's cart wins.
	findCartSQL = `SELECT identity, email, phone, updated_at FROM carts
		WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2)
		ORDER BY (email = $1) DESC
		LIMIT 1`

	loadItemsSQL = `SELECT product_id, size, color_variant, quantity,
		unit_price_at_add, offer_percentage, brand_id, brand_name
		FROM cart_items WHERE cart_identity = $1 ORDER BY position`

	upsertCartSQL = `INSERT INTO carts (identity, email, phone, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET
			email = EXCLUDED.email, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at`

	deleteItemsSQL = `DELETE FROM cart_items WHERE cart_identity = $1`

	insertItemSQL = `INSERT INTO cart_items (cart_identity, position, product_id, size,
		color_variant, quantity, unit_price_at_add, offer_percentage, brand_id, brand_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Items are
// stored with an explicit position so insertion order survives round trips.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Load returns the cart for the identity. Lookup tries the email first, then
// the phone number for legacy carts. A never-seen identity yields an empty
// cart; no row is created until the first mutation.
func (r *CartRepository) Load(ctx context.Context, identity cart.Identity) (*cart.Cart, error) {
	c := &cart.Cart{Identity: identity}

	rows, err := r.pool.Query(ctx, findCartSQL, identity.Email, identity.Phone)
	if err != nil {
		return nil, fmt.Errorf("finding cart for %q: %w", identity.Key(), err)
	}

	var storedIdentity string
	row, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (cart.Cart, error) {
		var loaded cart.Cart
		err := row.Scan(&storedIdentity, &loaded.Identity.Email, &loaded.Identity.Phone, &loaded.UpdatedAt)
		return loaded, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("finding cart for %q: %w", identity.Key(), err)
	}
	*c = row

	itemRows, err := r.pool.Query(ctx, loadItemsSQL, storedIdentity)
	if err != nil {
		return nil, fmt.Errorf("loading items for cart %q: %w", storedIdentity, err)
	}
	c.Items, err = pgx.CollectRows(itemRows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("loading items for cart %q: %w", storedIdentity, err)
	}

	return c, nil
}

// Replace overwrites the stored snapshot wholesale in one transaction: the
// cart row is upserted, all items deleted, and the new items inserted in
// order. This is the only write path, so stored state can never diverge from
// the snapshot the domain layer produced.
func (r *CartRepository) Replace(ctx context.Context, c *cart.Cart) error {
	key := c.Identity.Key()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning replace for cart %q: %w", key, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertCartSQL, key, c.Identity.Email, c.Identity.Phone, c.UpdatedAt); err != nil {
		return fmt.Errorf("upserting cart %q: %w", key, err)
	}

	if _, err := tx.Exec(ctx, deleteItemsSQL, key); err != nil {
		return fmt.Errorf("clearing items for cart %q: %w", key, err)
	}

	for i, item := range c.Items {
		if _, err := tx.Exec(ctx, insertItemSQL,
			key, i, item.ProductID, item.Size, item.ColorVariant, item.Quantity,
			item.UnitPriceAtAdd, item.OfferPercentage, item.Brand.ID, item.Brand.Name,
		); err != nil {
			return fmt.Errorf("inserting item %q into cart %q: %w", item.ProductID, key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replace for cart %q: %w", key, err)
	}
	return nil
}

func scanLineItem(row pgx.CollectableRow) (cart.LineItem, error) {
	var (
		li    cart.LineItem
		price decimal.Decimal
	)
	err := row.Scan(
		&li.ProductID, &li.Size, &li.ColorVariant, &li.Quantity,
		&price, &li.OfferPercentage, &li.Brand.ID, &li.Brand.Name,
	)
	li.UnitPriceAtAdd = price
	return li, err
}
