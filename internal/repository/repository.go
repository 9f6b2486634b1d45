package repository

import (
	"context"

	"github.com/opencartlab/cart-service/internal/entity"
)

// CouponFilter narrows admin coupon listings.
type CouponFilter struct {
	Active *bool
	// Valid filters on the validity window relative to now: true keeps
	// currently-valid coupons, false keeps expired or not-yet-valid ones.
	Valid *bool
}

// ProductRepository handles persistence for Products.
type ProductRepository interface {
	FindAll(ctx context.Context) ([]entity.Product, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// FindByIDs returns the products that exist, keyed by ID; missing IDs
	// are simply absent from the map.
	FindByIDs(ctx context.Context, ids []string) (map[string]entity.Product, error)
	// AdjustStock applies delta to a product's stock. It fails with
	// entity.ErrInsufficientStock if the result would be negative and
	// entity.ErrNotFound if the product does not exist.
	AdjustStock(ctx context.Context, id string, delta int) error
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// CartRepository handles persistence for Carts, one per user.
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (*entity.Cart, error)
	// Save inserts the cart when Version is zero and otherwise replaces
	// the stored row only if the versions match, failing with
	// entity.ErrConflict when another writer got there first.
	Save(ctx context.Context, cart *entity.Cart) error
}

// CouponRepository handles persistence for Coupons.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*entity.Coupon, error)
	FindByID(ctx context.Context, id string) (*entity.Coupon, error)
	FindAll(ctx context.Context, f CouponFilter) ([]entity.Coupon, error)
	Create(ctx context.Context, c *entity.Coupon) error
	Update(ctx context.Context, c *entity.Coupon) error
	Delete(ctx context.Context, id string) error
	// IncrementUsage bumps times_used by one, guarded against passing the
	// usage limit.
	IncrementUsage(ctx context.Context, code string) error
}

// Stores bundles the repositories visible inside one unit of work.
type Stores struct {
	Products ProductRepository
	Carts    CartRepository
	Coupons  CouponRepository
}

// UnitOfWork runs fn so that every mutation it performs through the given
// Stores commits atomically, or not at all. Detected write conflicts
// surface as entity.ErrConflict; retrying is the caller's concern.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
