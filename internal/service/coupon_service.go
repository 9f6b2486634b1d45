package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opencartlab/cart-service/internal/cache"
	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

// CouponService handles coupon administration and code lookups. Lookups go
// through a short-TTL cache; admin writes invalidate it.
type CouponService struct {
	coupons repository.CouponRepository
	cache   cache.CouponCache
}

func NewCouponService(coupons repository.CouponRepository, c cache.CouponCache) *CouponService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CouponService{coupons: coupons, cache: c}
}

// FindByCode returns the coupon for a normalized code, consulting the
// cache first.
func (s *CouponService) FindByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	code = entity.NormalizeCouponCode(code)
	if c := s.cache.Get(ctx, code); c != nil {
		return c, nil
	}
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, c)
	return c, nil
}

// Create registers a new coupon after enforcing its structural invariants.
func (s *CouponService) Create(ctx context.Context, cmd entity.CreateCoupon) (*entity.Coupon, error) {
	validFrom := cmd.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now()
	}
	coupon := &entity.Coupon{
		ID:             uuid.NewString(),
		Code:           entity.NormalizeCouponCode(cmd.Code),
		Description:    cmd.Description,
		DiscountType:   entity.DiscountType(cmd.DiscountType),
		DiscountValue:  cmd.DiscountValue,
		MinPurchase:    cmd.MinPurchase,
		MaxDiscount:    cmd.MaxDiscount,
		ValidFrom:      validFrom,
		ValidUntil:     cmd.ValidUntil,
		UsageLimit:     cmd.UsageLimit,
		ForAllUsers:    cmd.ForAllUsers,
		UserIDs:        cmd.UserIDs,
		ForAllProducts: cmd.ForAllProducts,
		Categories:     cmd.Categories,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// List returns coupons, optionally filtered by active flag and current
// validity.
func (s *CouponService) List(ctx context.Context, f repository.CouponFilter) ([]entity.Coupon, error) {
	return s.coupons.FindAll(ctx, f)
}

// Get returns one coupon by ID.
func (s *CouponService) Get(ctx context.Context, id string) (*entity.Coupon, error) {
	return s.coupons.FindByID(ctx, id)
}

// Update applies the non-nil fields of cmd to a stored coupon.
func (s *CouponService) Update(ctx context.Context, id string, cmd entity.UpdateCoupon) (*entity.Coupon, error) {
	coupon, err := s.coupons.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Description != nil {
		coupon.Description = *cmd.Description
	}
	if cmd.DiscountValue != nil {
		coupon.DiscountValue = *cmd.DiscountValue
	}
	if cmd.MinPurchase != nil {
		coupon.MinPurchase = *cmd.MinPurchase
	}
	if cmd.MaxDiscount != nil {
		coupon.MaxDiscount = *cmd.MaxDiscount
	}
	if cmd.ValidUntil != nil {
		coupon.ValidUntil = *cmd.ValidUntil
	}
	if cmd.Active != nil {
		coupon.Active = *cmd.Active
	}
	if cmd.UsageLimit != nil {
		coupon.UsageLimit = *cmd.UsageLimit
	}
	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	if err := s.coupons.Update(ctx, coupon); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, coupon.Code)
	return coupon, nil
}

// Delete removes a coupon.
func (s *CouponService) Delete(ctx context.Context, id string) error {
	coupon, err := s.coupons.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.coupons.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, coupon.Code)
	return nil
}
