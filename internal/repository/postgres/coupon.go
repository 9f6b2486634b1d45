package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

type couponRepository struct {
	db dbtx
}

// NewCouponRepository creates a CouponRepository backed by Postgres.
func NewCouponRepository(db dbtx) repository.CouponRepository {
	return &couponRepository{db: db}
}

const couponColumns = `id, code, description, discount_type, discount_value, min_purchase,
	max_discount, valid_from, valid_until, usage_limit, times_used,
	for_all_users, user_ids, for_all_products, categories, active, created_at`

func scanCoupon(row interface{ Scan(...any) error }) (*entity.Coupon, error) {
	var c entity.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MinPurchase,
		&c.MaxDiscount, &c.ValidFrom, &c.ValidUntil, &c.UsageLimit, &c.TimesUsed,
		&c.ForAllUsers, pq.Array(&c.UserIDs), &c.ForAllProducts, pq.Array(&c.Categories),
		&c.Active, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepository) FindByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, "SELECT "+couponColumns+" FROM coupons WHERE code = $1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %s: %w", code, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon %s: %w", code, err)
	}
	return c, nil
}

func (r *couponRepository) FindByID(ctx context.Context, id string) (*entity.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, "SELECT "+couponColumns+" FROM coupons WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon %s: %w", id, err)
	}
	return c, nil
}

func (r *couponRepository) FindAll(ctx context.Context, f repository.CouponFilter) ([]entity.Coupon, error) {
	query := "SELECT " + couponColumns + " FROM coupons WHERE 1=1"
	var args []any
	if f.Active != nil {
		args = append(args, *f.Active)
		query += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if f.Valid != nil {
		if *f.Valid {
			query += " AND valid_from <= NOW() AND valid_until >= NOW()"
		} else {
			query += " AND (valid_from > NOW() OR valid_until < NOW())"
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query coupons: %w", err)
	}
	defer rows.Close()

	var coupons []entity.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

func (r *couponRepository) Create(ctx context.Context, c *entity.Coupon) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO coupons (`+couponColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinPurchase,
		c.MaxDiscount, c.ValidFrom, c.ValidUntil, c.UsageLimit, c.TimesUsed,
		c.ForAllUsers, pq.Array(c.UserIDs), c.ForAllProducts, pq.Array(c.Categories),
		c.Active, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("coupon code %s already exists: %w", c.Code, entity.ErrValidation)
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}
	return nil
}

func (r *couponRepository) Update(ctx context.Context, c *entity.Coupon) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET description = $1, discount_value = $2, min_purchase = $3,
		 max_discount = $4, valid_until = $5, usage_limit = $6, active = $7
		 WHERE id = $8`,
		c.Description, c.DiscountValue, c.MinPurchase, c.MaxDiscount,
		c.ValidUntil, c.UsageLimit, c.Active, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("coupon %s: %w", c.ID, entity.ErrNotFound)
	}
	return nil
}

func (r *couponRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("coupon %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (r *couponRepository) IncrementUsage(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE coupons SET times_used = times_used + 1 WHERE code = $1 AND (usage_limit = 0 OR times_used < usage_limit)",
		code,
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage for %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("coupon %s usage exhausted or missing: %w", code, entity.ErrCouponInvalid)
	}
	return nil
}
