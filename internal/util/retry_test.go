package util

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	// GIVEN
	calls := 0
	op := func() (float64, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("busy")
		}
		return 42, nil
	}

	// WHEN
	result, err := RetryWithBackoff(context.Background(), 3, time.Millisecond, op)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 42.0, result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_GivesUpAfterAttempts(t *testing.T) {
	// GIVEN
	calls := 0
	op := func() (float64, error) {
		calls++
		return 0, errors.New("busy")
	}

	// WHEN
	_, err := RetryWithBackoff(context.Background(), 2, time.Millisecond, op)

	// THEN
	assert.EqualError(t, err, "busy")
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff_DoesNotRetryPersistentErrors(t *testing.T) {
	// GIVEN
	calls := 0
	op := func() (float64, error) {
		calls++
		return 0, os.ErrNotExist
	}

	// WHEN
	_, err := RetryWithBackoff(context.Background(), 5, time.Millisecond, op)

	// THEN
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_AbortsOnCancel(t *testing.T) {
	// GIVEN
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func() (float64, error) {
		calls++
		cancel()
		return 0, errors.New("busy")
	}

	// WHEN
	_, err := RetryWithBackoff(ctx, 5, time.Hour, op)

	// THEN
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
