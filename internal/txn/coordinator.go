package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

const (
	// DefaultMaxRetries is how many extra attempts follow a conflicted one.
	DefaultMaxRetries = 2
	// DefaultAttemptTimeout bounds the wall-clock time of a single attempt.
	DefaultAttemptTimeout = 5 * time.Second

	initialBackoff = 20 * time.Millisecond
)

// Coordinator runs a unit of work that spans the cart and product stores,
// retrying the whole unit on detected write conflicts. Business-rule
// failures are never retried; only entity.ErrConflict and per-attempt
// timeouts count as transient.
type Coordinator struct {
	uow            repository.UnitOfWork
	maxRetries     uint
	attemptTimeout time.Duration
}

func NewCoordinator(uow repository.UnitOfWork) *Coordinator {
	return &Coordinator{
		uow:            uow,
		maxRetries:     DefaultMaxRetries,
		attemptTimeout: DefaultAttemptTimeout,
	}
}

// WithLimits overrides the retry budget and per-attempt timeout.
func (c *Coordinator) WithLimits(maxRetries uint, attemptTimeout time.Duration) *Coordinator {
	c.maxRetries = maxRetries
	c.attemptTimeout = attemptTimeout
	return c
}

// Run executes fn atomically, retrying on conflict with short exponential
// backoff. After the retry budget is exhausted the last conflict surfaces
// to the caller as entity.ErrConflict.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()

		err := c.uow.Run(attemptCtx, fn)
		if err == nil {
			return struct{}{}, nil
		}

		if retryable(ctx, attemptCtx, err) {
			slog.Warn("unit of work conflicted, retrying", "attempt", attempt, "err", err)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxRetries+1),
	)
	// Exhausting the budget on conflicts or attempt timeouts is a
	// definitive failure of the whole unit, not of the last attempt.
	if err != nil && ctx.Err() == nil &&
		(errors.Is(err, entity.ErrConflict) || errors.Is(err, context.DeadlineExceeded)) {
		return fmt.Errorf("retries exhausted after %d attempts: %w", attempt, entity.ErrConflict)
	}
	return err
}

func retryable(parent, attempt context.Context, err error) bool {
	if parent.Err() != nil {
		// The caller is gone; nothing to retry for.
		return false
	}
	if errors.Is(err, entity.ErrConflict) {
		return true
	}
	// An attempt that ran out of its own deadline counts as a failed
	// attempt, not a permanent error.
	return errors.Is(err, context.DeadlineExceeded) && attempt.Err() != nil
}
