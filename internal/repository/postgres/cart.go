package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

type cartRepository struct {
	db dbtx
}

// NewCartRepository creates a CartRepository backed by Postgres.
func NewCartRepository(db dbtx) repository.CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindByUser(ctx context.Context, userID string) (*entity.Cart, error) {
	var c entity.Cart
	var coupon string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, coupon_code, version, updated_at FROM carts WHERE user_id = $1",
		userID,
	).Scan(&c.ID, &c.UserID, &coupon, &c.Version, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart for user %s: %w", userID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	c.CouponCode = coupon

	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, quantity, price_at_addition FROM cart_items WHERE cart_id = $1 ORDER BY position",
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it entity.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.PriceAtAddition); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (r *cartRepository) Save(ctx context.Context, cart *entity.Cart) error {
	cart.UpdatedAt = time.Now()

	if cart.Version == 0 {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO carts (id, user_id, coupon_code, version, updated_at) VALUES ($1, $2, $3, 1, $4)",
			cart.ID, cart.UserID, cart.CouponCode, cart.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Another request created this user's cart first.
				return fmt.Errorf("cart for user %s: %w", cart.UserID, entity.ErrConflict)
			}
			return fmt.Errorf("failed to insert cart: %w", err)
		}
		cart.Version = 1
	} else {
		res, err := r.db.ExecContext(ctx,
			"UPDATE carts SET coupon_code = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4",
			cart.CouponCode, cart.UpdatedAt, cart.ID, cart.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update cart: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("cart %s version %d: %w", cart.ID, cart.Version, entity.ErrConflict)
		}
		cart.Version++
	}

	// Lines are few per cart; rewrite them wholesale.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	for i, it := range cart.Items {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO cart_items (cart_id, position, product_id, quantity, price_at_addition) VALUES ($1, $2, $3, $4, $5)",
			cart.ID, i, it.ProductID, it.Quantity, it.PriceAtAddition,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart item %s: %w", it.ProductID, err)
		}
	}
	return nil
}
