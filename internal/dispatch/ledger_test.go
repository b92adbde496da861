package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

func TestClaimComputesStakeFromBalance(t *testing.T) {
	l := NewLedger(1000, 1.5)

	stake, err := l.Claim("k1")
	require.NoError(t, err)
	assert.Equal(t, 15.00, stake)
	assert.Equal(t, 985.00, l.Balance())

	// The next claim sizes off the reduced balance, not the original.
	stake, err = l.Claim("k2")
	require.NoError(t, err)
	assert.Equal(t, 14.78, stake)
}

func TestClaimIsOncePerKey(t *testing.T) {
	l := NewLedger(1000, 1.5)
	_, err := l.Claim("k1")
	require.NoError(t, err)

	_, err = l.Claim("k1")
	assert.ErrorIs(t, err, domain.ErrAlreadyDispatched)

	// Settling in any terminal state keeps the key claimed.
	l.Settle("k1", domain.IntentFailed, 15)
	_, err = l.Claim("k1")
	assert.ErrorIs(t, err, domain.ErrAlreadyDispatched)
}

func TestSettleRefundsOnlyFailures(t *testing.T) {
	l := NewLedger(1000, 1.5)
	stake, err := l.Claim("k1")
	require.NoError(t, err)

	l.Settle("k1", domain.IntentDispatched, stake)
	assert.Equal(t, 985.00, l.Balance(), "dispatched stake stays committed")

	stake, err = l.Claim("k2")
	require.NoError(t, err)
	l.Settle("k2", domain.IntentFailed, stake)
	assert.Equal(t, 985.00, l.Balance(), "failed stake returns to balance")
}

func TestClaimRejectsEmptyBalance(t *testing.T) {
	l := NewLedger(0.10, 1.5)
	_, err := l.Claim("k1")
	assert.ErrorIs(t, err, domain.ErrDispatchRejected)
}

func TestConcurrentClaimsNeverShareBalance(t *testing.T) {
	l := NewLedger(1000, 10)

	const n = 20
	stakes := make([]float64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := l.Claim(string(rune('a' + i)))
			if err == nil {
				stakes[i] = s
			}
		}(i)
	}
	wg.Wait()

	// Two claims reading the same balance would produce a duplicate stake.
	seen := map[float64]int{}
	total := 0.0
	for _, s := range stakes {
		require.Greater(t, s, 0.0)
		seen[s]++
		total += s
	}
	for s, count := range seen {
		assert.Equal(t, 1, count, "stake %.2f computed twice", s)
	}
	assert.InDelta(t, 1000-l.Balance(), total, 0.01)
}
