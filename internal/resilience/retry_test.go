package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	v, err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 3, attempts)
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), 2, time.Millisecond, func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, 5, time.Second, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	require.Error(t, err)
}
