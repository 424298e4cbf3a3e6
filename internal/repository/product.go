package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/casashop/cart-api/internal/domain/product"
)

const (
	listProductsSQL = `SELECT p.id, p.name, b.id, b.name, p.price, p.offer_percentage, p.category,
		p.image_thumbnail, p.image_mobile, p.image_tablet, p.image_desktop
		FROM products p JOIN brands b ON b.id = p.brand_id ORDER BY p.id`

	getProductByIDSQL = `SELECT p.id, p.name, b.id, b.name, p.price, p.offer_percentage, p.category,
		p.image_thumbnail, p.image_mobile, p.image_tablet, p.image_desktop
		FROM products p JOIN brands b ON b.id = p.brand_id WHERE p.id = $1`

	listSizesSQL       = `SELECT product_id, size, stock FROM product_sizes ORDER BY product_id, size`
	getSizesSQL        = `SELECT size, stock FROM product_sizes WHERE product_id = $1 ORDER BY size`
	listAssignedSQL    = `SELECT product_id, code FROM product_coupons ORDER BY product_id, code`
	getAssignedSQL     = `SELECT code FROM product_coupons WHERE product_id = $1 ORDER BY code`
	upsertBrandSQL     = `INSERT INTO brands (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	upsertProductSQL   = `INSERT INTO products (id, name, brand_id, price, offer_percentage, category,
		image_thumbnail, image_mobile, image_tablet, image_desktop)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, brand_id = EXCLUDED.brand_id, price = EXCLUDED.price,
			offer_percentage = EXCLUDED.offer_percentage, category = EXCLUDED.category,
			image_thumbnail = EXCLUDED.image_thumbnail, image_mobile = EXCLUDED.image_mobile,
			image_tablet = EXCLUDED.image_tablet, image_desktop = EXCLUDED.image_desktop`
	deleteSizesSQL     = `DELETE FROM product_sizes WHERE product_id = $1`
	insertSizeSQL      = `INSERT INTO product_sizes (product_id, size, stock) VALUES ($1, $2, $3)`
	deleteAssignedSQL  = `DELETE FROM product_coupons WHERE product_id = $1`
	insertAssignedSQL  = `INSERT INTO product_coupons (product_id, code) VALUES ($1, $2)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL. The
// brand is joined and resolved into the canonical product.Brand here; no
// caller ever sees a raw brand_id.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the full catalog ordered by product ID, with sizes and
// assigned coupon codes attached.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	sizeRows, err := r.pool.Query(ctx, listSizesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing product sizes: %w", err)
	}
	_, err = pgx.CollectRows(sizeRows, func(row pgx.CollectableRow) (struct{}, error) {
		var (
			productID string
			s         product.SizeStock
		)
		if err := row.Scan(&productID, &s.Size, &s.Stock); err != nil {
			return struct{}{}, err
		}
		if p, ok := byID[productID]; ok {
			p.Sizes = append(p.Sizes, s)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing product sizes: %w", err)
	}

	couponRows, err := r.pool.Query(ctx, listAssignedSQL)
	if err != nil {
		return nil, fmt.Errorf("listing assigned coupons: %w", err)
	}
	_, err = pgx.CollectRows(couponRows, func(row pgx.CollectableRow) (struct{}, error) {
		var productID, code string
		if err := row.Scan(&productID, &code); err != nil {
			return struct{}{}, err
		}
		if p, ok := byID[productID]; ok {
			p.AssignedCoupons = append(p.AssignedCoupons, code)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing assigned coupons: %w", err)
	}

	return products, nil
}

// GetByID returns a single product with its sizes and assigned coupons.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	sizeRows, err := r.pool.Query(ctx, getSizesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting sizes for product %q: %w", id, err)
	}
	p.Sizes, err = pgx.CollectRows(sizeRows, func(row pgx.CollectableRow) (product.SizeStock, error) {
		var s product.SizeStock
		err := row.Scan(&s.Size, &s.Stock)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting sizes for product %q: %w", id, err)
	}

	couponRows, err := r.pool.Query(ctx, getAssignedSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting assigned coupons for product %q: %w", id, err)
	}
	p.AssignedCoupons, err = pgx.CollectRows(couponRows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting assigned coupons for product %q: %w", id, err)
	}

	return &p, nil
}

// Upsert writes a product, its brand, sizes, and assigned coupon links in one
// transaction. Used by the seeding tool.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert for product %q: %w", p.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertBrandSQL, p.Brand.ID, p.Brand.Name); err != nil {
		return fmt.Errorf("upserting brand %q: %w", p.Brand.ID, err)
	}

	if _, err := tx.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Brand.ID, p.Price, p.OfferPercentage, p.Category,
		p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
	); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}

	if _, err := tx.Exec(ctx, deleteSizesSQL, p.ID); err != nil {
		return fmt.Errorf("clearing sizes for product %q: %w", p.ID, err)
	}
	for _, s := range p.Sizes {
		if _, err := tx.Exec(ctx, insertSizeSQL, p.ID, s.Size, s.Stock); err != nil {
			return fmt.Errorf("inserting size %q for product %q: %w", s.Size, p.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, deleteAssignedSQL, p.ID); err != nil {
		return fmt.Errorf("clearing assigned coupons for product %q: %w", p.ID, err)
	}
	for _, code := range p.AssignedCoupons {
		if _, err := tx.Exec(ctx, insertAssignedSQL, p.ID, code); err != nil {
			return fmt.Errorf("inserting assigned coupon %q for product %q: %w", code, p.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand.ID, &p.Brand.Name, &price, &p.OfferPercentage, &p.Category,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
	)
	p.Price = price
	return p, err
}
