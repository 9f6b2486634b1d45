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

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork creates a UnitOfWork that runs each function inside a
// single Postgres transaction.
func NewUnitOfWork(db *sql.DB) repository.UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Run(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stores := repository.Stores{
		Products: NewProductRepository(tx),
		Carts:    NewCartRepository(tx),
		Coupons:  NewCouponRepository(tx),
	}

	if err := fn(ctx, stores); err != nil {
		return mapConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return mapConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// mapConflict converts Postgres serialization and deadlock failures into
// the shared conflict sentinel so the coordinator can retry them.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%v: %w", err, entity.ErrConflict)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
