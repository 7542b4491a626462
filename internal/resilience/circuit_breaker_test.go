package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2*time.Second, 4, 4, 0.5, 300*time.Millisecond, 2)

	for i := 0; i < 4; i++ {
		require.True(t, cb.Allow(), "closed breaker should allow attempt %d", i)
		cb.RecordResult(false)
	}
	require.False(t, cb.Allow(), "breaker should be open after exceeding failure rate")

	time.Sleep(400 * time.Millisecond)
	require.True(t, cb.Allow(), "half-open probe should be allowed")
	cb.RecordResult(true)
	require.True(t, cb.Allow(), "second half-open probe should be allowed")
	cb.RecordResult(true)

	require.True(t, cb.Allow(), "breaker should be closed after successful probes")
}
