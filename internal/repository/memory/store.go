package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

// Store holds every collection behind a single lock and acts as the unit
// of work. It mirrors the optimistic-concurrency behavior of the Postgres
// layer (versioned cart saves, guarded stock updates) so the services can
// be exercised without a database. The per-collection repositories are
// thin facades over the shared state.
type Store struct {
	mu            sync.RWMutex
	products      map[string]entity.Product
	cartsByUser   map[string]entity.Cart
	couponsByCode map[string]entity.Coupon
}

func NewStore() *Store {
	return &Store{
		products:      make(map[string]entity.Product),
		cartsByUser:   make(map[string]entity.Cart),
		couponsByCode: make(map[string]entity.Coupon),
	}
}

func (m *Store) Products() repository.ProductRepository { return productRepo{m} }
func (m *Store) Carts() repository.CartRepository       { return cartRepo{m} }
func (m *Store) Coupons() repository.CouponRepository   { return couponRepo{m} }

// Stores bundles the facades the same way the unit of work hands them to
// a transaction body.
func (m *Store) Stores() repository.Stores {
	return repository.Stores{Products: m.Products(), Carts: m.Carts(), Coupons: m.Coupons()}
}

var (
	_ repository.ProductRepository = productRepo{}
	_ repository.CartRepository    = cartRepo{}
	_ repository.CouponRepository  = couponRepo{}
	_ repository.UnitOfWork        = (*Store)(nil)
)

// transaction-aware locking: Run holds the write lock for the whole unit
// of work and marks the context so nested calls skip their own locks.
type txKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(txKey{}).(bool)
	return ok && v
}

func (m *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

// Run executes fn under the store-wide write lock. Mutations inside fn are
// not rolled back on error; the services validate before they mutate, so a
// failed unit leaves no partial writes.
func (m *Store) Run(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx, m.Stores())
}

// PutProduct inserts or replaces a product unconditionally. Test setup
// helper; Seed keeps the only-when-empty semantics of the real layer.
func (m *Store) PutProduct(p entity.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// --- ProductRepository ---

type productRepo struct{ s *Store }

func (r productRepo) FindAll(ctx context.Context) ([]entity.Product, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	out := make([]entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r productRepo) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	p, ok := r.s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, entity.ErrNotFound)
	}
	cp := p
	return &cp, nil
}

func (r productRepo) FindByIDs(ctx context.Context, ids []string) (map[string]entity.Product, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	out := make(map[string]entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, entity.ErrNotFound)
	}
	if p.Stock+delta < 0 {
		return fmt.Errorf("product %s: %w", id, entity.ErrInsufficientStock)
	}
	p.Stock += delta
	r.s.products[id] = p
	return nil
}

func (r productRepo) Seed(ctx context.Context, products []entity.Product) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	if len(r.s.products) > 0 {
		return nil
	}
	for _, p := range products {
		r.s.products[p.ID] = p
	}
	return nil
}

// --- CartRepository ---

type cartRepo struct{ s *Store }

func (r cartRepo) FindByUser(ctx context.Context, userID string) (*entity.Cart, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	c, ok := r.s.cartsByUser[userID]
	if !ok {
		return nil, fmt.Errorf("cart for user %s: %w", userID, entity.ErrNotFound)
	}
	cp := c
	cp.Items = append([]entity.CartItem(nil), c.Items...)
	return &cp, nil
}

func (r cartRepo) Save(ctx context.Context, cart *entity.Cart) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	stored, exists := r.s.cartsByUser[cart.UserID]
	if cart.Version == 0 {
		if exists {
			return fmt.Errorf("cart for user %s: %w", cart.UserID, entity.ErrConflict)
		}
	} else if !exists || stored.Version != cart.Version {
		return fmt.Errorf("cart %s version %d: %w", cart.ID, cart.Version, entity.ErrConflict)
	}
	cart.Version++
	cart.UpdatedAt = time.Now()
	cp := *cart
	cp.Items = append([]entity.CartItem(nil), cart.Items...)
	r.s.cartsByUser[cart.UserID] = cp
	return nil
}

// --- CouponRepository ---

type couponRepo struct{ s *Store }

func (r couponRepo) FindByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	c, ok := r.s.couponsByCode[code]
	if !ok {
		return nil, fmt.Errorf("coupon %s: %w", code, entity.ErrNotFound)
	}
	cp := c
	return &cp, nil
}

func (r couponRepo) FindByID(ctx context.Context, id string) (*entity.Coupon, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	for _, c := range r.s.couponsByCode {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("coupon %s: %w", id, entity.ErrNotFound)
}

func (r couponRepo) FindAll(ctx context.Context, f repository.CouponFilter) ([]entity.Coupon, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	now := time.Now()
	out := make([]entity.Coupon, 0, len(r.s.couponsByCode))
	for _, c := range r.s.couponsByCode {
		if f.Active != nil && c.Active != *f.Active {
			continue
		}
		if f.Valid != nil {
			inWindow := !now.Before(c.ValidFrom) && !now.After(c.ValidUntil)
			if inWindow != *f.Valid {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r couponRepo) Create(ctx context.Context, c *entity.Coupon) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	if _, exists := r.s.couponsByCode[c.Code]; exists {
		return fmt.Errorf("coupon code %s already exists: %w", c.Code, entity.ErrValidation)
	}
	r.s.couponsByCode[c.Code] = *c
	return nil
}

func (r couponRepo) Update(ctx context.Context, c *entity.Coupon) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	if _, exists := r.s.couponsByCode[c.Code]; !exists {
		return fmt.Errorf("coupon %s: %w", c.ID, entity.ErrNotFound)
	}
	r.s.couponsByCode[c.Code] = *c
	return nil
}

func (r couponRepo) Delete(ctx context.Context, id string) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	for code, c := range r.s.couponsByCode {
		if c.ID == id {
			delete(r.s.couponsByCode, code)
			return nil
		}
	}
	return fmt.Errorf("coupon %s: %w", id, entity.ErrNotFound)
}

func (r couponRepo) IncrementUsage(ctx context.Context, code string) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	c, ok := r.s.couponsByCode[code]
	if !ok {
		return fmt.Errorf("coupon %s: %w", code, entity.ErrNotFound)
	}
	if c.UsageLimit > 0 && c.TimesUsed >= c.UsageLimit {
		return fmt.Errorf("coupon %s usage exhausted: %w", code, entity.ErrCouponInvalid)
	}
	c.TimesUsed++
	r.s.couponsByCode[code] = c
	return nil
}
