package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/casashop/cart-api/internal/domain/product"
)

const (
	// idempotencyTTL is how long a recorded mutation result is replayable.
	// Long enough to cover client retries after a lost response, short
	// enough that the cache stays small.
	idempotencyTTL  = 15 * time.Minute
	idempotencySize = 4096
)

// AddItemParams describes an add-to-cart mutation.
type AddItemParams struct {
	ProductID    string
	Quantity     int
	Size         string
	ColorVariant string
	// IdempotencyKey, when set, makes the mutation replay-safe: a retry
	// carrying the same key within the retention window returns the
	// originally recorded snapshot instead of re-applying the mutation.
	IdempotencyKey string
}

// Service is the single source of truth for cart state. Every mutation is a
// load-modify-replace round trip against the repository; the returned
// snapshot always reflects stored truth.
//
// Mutations for the same identity are serialized through a per-key lock, so
// two rapid quantity updates queue instead of racing last-write-wins.
// Concurrent fetches for the same identity are collapsed into one repository
// read via singleflight.
type Service struct {
	carts    Repository
	products product.Repository
	locks    *keyedMutex
	fetch    singleflight.Group
	idem     *lru.LRU[string, *Cart]
	lg       *zap.Logger
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository, lg *zap.Logger) *Service {
	return &Service{
		carts:    carts,
		products: products,
		locks:    newKeyedMutex(),
		idem:     lru.NewLRU[string, *Cart](idempotencySize, nil, idempotencyTTL),
		lg:       lg,
		now:      time.Now,
	}
}

// Get returns the cart snapshot for identity, creating nothing: a never-seen
// identity yields an empty cart. Redundant concurrent fetches are
// deduplicated into a single repository read.
func (s *Service) Get(ctx context.Context, identity Identity) (*Cart, error) {
	identity = NewIdentity(identity.Email, identity.Phone)
	if identity.Key() == "" {
		return nil, ErrIdentityRequired
	}

	v, err, _ := s.fetch.Do(identity.Key(), func() (any, error) {
		return s.carts.Load(ctx, identity)
	})
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return v.(*Cart).clone(), nil
}

// AddItem adds a product line to the cart, enforcing the single-brand
// invariant and per-size stock limits. Adding an existing (productID, size)
// line sums the quantities into the one line. The price and offer percentage
// are snapshotted from the catalog at this moment.
func (s *Service) AddItem(ctx context.Context, identity Identity, params AddItemParams) (*Cart, error) {
	identity = NewIdentity(identity.Email, identity.Phone)
	if identity.Key() == "" {
		return nil, ErrIdentityRequired
	}
	if params.Quantity <= 0 {
		return nil, ErrNonPositiveQuantity
	}

	s.locks.Lock(identity.Key())
	defer s.locks.Unlock(identity.Key())

	if snap, ok := s.replay(identity, params.IdempotencyKey); ok {
		return snap, nil
	}

	snap, err := s.addLocked(ctx, identity, params)
	if err != nil {
		return nil, err
	}

	s.record(identity, params.IdempotencyKey, snap)
	return snap, nil
}

// addLocked performs the add mutation. Caller must hold the identity lock.
func (s *Service) addLocked(ctx context.Context, identity Identity, params AddItemParams) (*Cart, error) {
	c, err := s.carts.Load(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	p, err := s.products.GetByID(ctx, params.ProductID)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", params.ProductID)
	}

	stock, ok := p.StockFor(params.Size)
	if !ok {
		return nil, ErrSizeUnavailable
	}

	if current, has := c.Brand(); has && current.ID != p.Brand.ID {
		return nil, &BrandMismatchError{CurrentBrand: current, NewBrand: p.Brand}
	}

	idx := c.find(params.ProductID, params.Size)
	merged := params.Quantity
	if idx >= 0 {
		merged += c.Items[idx].Quantity
	}
	if merged > stock {
		return nil, &InsufficientStockError{ProductID: p.ID, Size: params.Size, Available: stock}
	}

	if idx >= 0 {
		// Quantity merge: the original snapshot price stays untouched.
		c.Items[idx].Quantity = merged
	} else {
		c.Items = append(c.Items, LineItem{
			ProductID:       p.ID,
			Size:            params.Size,
			ColorVariant:    params.ColorVariant,
			Quantity:        params.Quantity,
			UnitPriceAtAdd:  p.Price,
			OfferPercentage: p.OfferPercentage,
			Brand:           p.Brand,
		})
	}
	c.UpdatedAt = s.now()

	if err := s.carts.Replace(ctx, c); err != nil {
		return nil, errors.Wrap(err, "replace cart")
	}
	return c.clone(), nil
}

// UpdateQuantity sets the absolute quantity of an existing line.
//
// Policy: quantity must be positive. A quantity of zero or less is rejected
// with ErrNonPositiveQuantity rather than being treated as a remove; callers
// that want a line gone must call RemoveItem explicitly.
func (s *Service) UpdateQuantity(ctx context.Context, identity Identity, productID, size string, quantity int, idempotencyKey string) (*Cart, error) {
	identity = NewIdentity(identity.Email, identity.Phone)
	if identity.Key() == "" {
		return nil, ErrIdentityRequired
	}
	if quantity <= 0 {
		return nil, ErrNonPositiveQuantity
	}

	s.locks.Lock(identity.Key())
	defer s.locks.Unlock(identity.Key())

	if snap, ok := s.replay(identity, idempotencyKey); ok {
		return snap, nil
	}

	c, err := s.carts.Load(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	idx := c.find(productID, size)
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", productID)
	}
	stock, ok := p.StockFor(size)
	if !ok {
		return nil, ErrSizeUnavailable
	}
	if quantity > stock {
		return nil, &InsufficientStockError{ProductID: productID, Size: size, Available: stock}
	}

	c.Items[idx].Quantity = quantity
	c.UpdatedAt = s.now()

	if err := s.carts.Replace(ctx, c); err != nil {
		return nil, errors.Wrap(err, "replace cart")
	}

	snap := c.clone()
	s.record(identity, idempotencyKey, snap)
	return snap, nil
}

// RemoveItem deletes the (productID, size) line from the cart.
func (s *Service) RemoveItem(ctx context.Context, identity Identity, productID, size string) (*Cart, error) {
	identity = NewIdentity(identity.Email, identity.Phone)
	if identity.Key() == "" {
		return nil, ErrIdentityRequired
	}

	s.locks.Lock(identity.Key())
	defer s.locks.Unlock(identity.Key())

	c, err := s.carts.Load(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	idx := c.find(productID, size)
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.UpdatedAt = s.now()

	if err := s.carts.Replace(ctx, c); err != nil {
		return nil, errors.Wrap(err, "replace cart")
	}
	return c.clone(), nil
}

// Clear empties the cart. The cart itself survives; only its items go.
func (s *Service) Clear(ctx context.Context, identity Identity) (*Cart, error) {
	identity = NewIdentity(identity.Email, identity.Phone)
	if identity.Key() == "" {
		return nil, ErrIdentityRequired
	}

	s.locks.Lock(identity.Key())
	defer s.locks.Unlock(identity.Key())

	return s.clearLocked(ctx, identity)
}

// clearLocked empties the cart. Caller must hold the identity lock.
func (s *Service) clearLocked(ctx context.Context, identity Identity) (*Cart, error) {
	c, err := s.carts.Load(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	c.Items = nil
	c.UpdatedAt = s.now()

	if err := s.carts.Replace(ctx, c); err != nil {
		return nil, errors.Wrap(err, "replace cart")
	}
	return c.clone(), nil
}

// SwitchBrand resolves a brand conflict by, in strict order: (1) clearing the
// cart, (2) re-adding the pending product. If the clear fails the cart is
// untouched and the conflict stands. If the add fails after a successful
// clear, the cart is left empty and the error is EmptyAfterSwitchError: a
// degraded but recoverable state, not a crash.
func (s *Service) SwitchBrand(ctx context.Context, identity Identity, params AddItemParams) (*Cart, error) {
	identity = NewIdentity(identity.Email, identity.Phone)
	if identity.Key() == "" {
		return nil, ErrIdentityRequired
	}
	if params.Quantity <= 0 {
		return nil, ErrNonPositiveQuantity
	}

	s.locks.Lock(identity.Key())
	defer s.locks.Unlock(identity.Key())

	if _, err := s.clearLocked(ctx, identity); err != nil {
		return nil, errors.Wrap(err, "clear cart for brand switch")
	}

	snap, err := s.addLocked(ctx, identity, params)
	if err != nil {
		s.lg.Warn("cart cleared but pending product add failed",
			zap.String("identity", identity.Key()),
			zap.String("product_id", params.ProductID),
			zap.Error(err),
		)
		return nil, &EmptyAfterSwitchError{Err: err}
	}
	return snap, nil
}

// replay returns the recorded snapshot for an idempotency key, if any.
// Caller must hold the identity lock.
func (s *Service) replay(identity Identity, key string) (*Cart, bool) {
	if key == "" {
		return nil, false
	}
	snap, ok := s.idem.Get(identity.Key() + "\x00" + key)
	if !ok {
		return nil, false
	}
	s.lg.Debug("idempotent replay served",
		zap.String("identity", identity.Key()),
	)
	return snap.clone(), true
}

// record stores the mutation result under an idempotency key.
// Caller must hold the identity lock.
func (s *Service) record(identity Identity, key string, snap *Cart) {
	if key == "" {
		return
	}
	s.idem.Add(identity.Key()+"\x00"+key, snap.clone())
}
