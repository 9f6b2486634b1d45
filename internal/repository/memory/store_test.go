package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

func seedProduct(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	s.PutProduct(entity.Product{ID: id, Name: id, Price: 10, Stock: stock, Status: entity.ProductActive})
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProduct(t, s, "p1", 5)

	require.NoError(t, s.Products().AdjustStock(ctx, "p1", -3))
	p, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	err = s.Products().AdjustStock(ctx, "p1", -3)
	require.ErrorIs(t, err, entity.ErrInsufficientStock)

	err = s.Products().AdjustStock(ctx, "missing", 1)
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCartSave_OptimisticVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	cart := &entity.Cart{ID: "c1", UserID: "u1"}
	require.NoError(t, s.Carts().Save(ctx, cart))
	assert.Equal(t, 1, cart.Version)

	// A save against a stale version must conflict.
	stale := &entity.Cart{ID: "c1", UserID: "u1", Version: 0}
	require.ErrorIs(t, s.Carts().Save(ctx, stale), entity.ErrConflict)

	loaded, err := s.Carts().FindByUser(ctx, "u1")
	require.NoError(t, err)
	loaded.Items = append(loaded.Items, entity.CartItem{ProductID: "p1", Quantity: 1, PriceAtAddition: 10})
	require.NoError(t, s.Carts().Save(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	// The first handle is now stale too.
	require.ErrorIs(t, s.Carts().Save(ctx, cart), entity.ErrConflict)
}

func TestFindByUser_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Carts().Save(ctx, &entity.Cart{ID: "c1", UserID: "u1", Items: []entity.CartItem{{ProductID: "p1", Quantity: 1, PriceAtAddition: 5}}}))

	a, err := s.Carts().FindByUser(ctx, "u1")
	require.NoError(t, err)
	a.Items[0].Quantity = 99

	b, err := s.Carts().FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Items[0].Quantity)
}

func TestRun_LocksStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProduct(t, s, "p1", 1)

	err := s.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		if err := st.Products.AdjustStock(ctx, "p1", -1); err != nil {
			return err
		}
		return st.Carts.Save(ctx, &entity.Cart{ID: "c1", UserID: "u1"})
	})
	require.NoError(t, err)

	p, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestCouponUsage(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	require.NoError(t, s.Coupons().Create(ctx, &entity.Coupon{
		ID: "id1", Code: "LIMITED", DiscountType: entity.DiscountFixed, DiscountValue: 5,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
		UsageLimit: 1, Active: true,
	}))

	require.NoError(t, s.Coupons().IncrementUsage(ctx, "LIMITED"))
	require.ErrorIs(t, s.Coupons().IncrementUsage(ctx, "LIMITED"), entity.ErrCouponInvalid)

	c, err := s.Coupons().FindByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TimesUsed)
}
