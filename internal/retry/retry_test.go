package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nate-a11y/lrpbolt-sub001/internal/retry"
)

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Config{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retry.Do(context.Background(), retry.Config{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	}, func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	calls := 0
	err := retry.Do(ctx, retry.Config{
		MaxAttempts:    10,
		InitialBackoff: time.Hour,
	}, func(context.Context) error {
		calls++
		cancel()
		return boom
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
