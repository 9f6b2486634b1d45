package txn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

// uowFunc adapts a function to the UnitOfWork interface.
type uowFunc func(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error

func (f uowFunc) Run(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	return f(ctx, fn)
}

func passthrough() repository.UnitOfWork {
	return uowFunc(func(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
		return fn(ctx, repository.Stores{})
	})
}

func TestRun_Success(t *testing.T) {
	coord := NewCoordinator(passthrough())
	calls := 0
	err := coord.Run(context.Background(), func(ctx context.Context, s repository.Stores) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_RetriesConflictThenSucceeds(t *testing.T) {
	coord := NewCoordinator(passthrough())
	calls := 0
	err := coord.Run(context.Background(), func(ctx context.Context, s repository.Stores) error {
		calls++
		if calls < 3 {
			return entity.ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRun_ExhaustedRetriesSurfaceConflict(t *testing.T) {
	coord := NewCoordinator(passthrough())
	calls := 0
	err := coord.Run(context.Background(), func(ctx context.Context, s repository.Stores) error {
		calls++
		return entity.ErrConflict
	})
	require.ErrorIs(t, err, entity.ErrConflict)
	assert.Equal(t, DefaultMaxRetries+1, calls)
}

func TestRun_BusinessErrorsAreNotRetried(t *testing.T) {
	coord := NewCoordinator(passthrough())
	calls := 0
	err := coord.Run(context.Background(), func(ctx context.Context, s repository.Stores) error {
		calls++
		return entity.ErrInsufficientStock
	})
	require.ErrorIs(t, err, entity.ErrInsufficientStock)
	assert.Equal(t, 1, calls)
}

func TestRun_AttemptTimeoutCountsAsFailedAttempt(t *testing.T) {
	coord := NewCoordinator(passthrough()).WithLimits(1, 10*time.Millisecond)
	calls := 0
	err := coord.Run(context.Background(), func(ctx context.Context, s repository.Stores) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, entity.ErrConflict, "an exhausted budget surfaces as a conflict")
	assert.Equal(t, 2, calls)
}

func TestRun_CancelledCallerStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	coord := NewCoordinator(passthrough())
	calls := 0
	err := coord.Run(ctx, func(ctx context.Context, s repository.Stores) error {
		calls++
		cancel()
		return entity.ErrConflict
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled) && calls > 1, "should not keep retrying after cancel")
	assert.Equal(t, 1, calls)
}
