package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestReturnsLastErrorAfterMaxAttempts(t *testing.T) {
	sentinel := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestZeroMaxAttemptsRetriesUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		// Let a few attempts happen, then stop the loop.
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, fastConfig(0), func() error {
		calls++
		return errors.New("never works")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Greater(t, calls, 1)
}

func TestCancelledContextShortCircuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestAddJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, addJitter(base, 0))

	for i := 0; i < 50; i++ {
		d := addJitter(base, 0.2)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}
