package retry

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = eris.New("transient")

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		ShouldRetry:    func(err error) bool { return eris.Is(err, errTransient) },
	}
}

func TestDoValSucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoValGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(_ context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValNonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(_ context.Context) (int, error) {
		calls++
		return 0, eris.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValNoClassifierNeverRetries(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.ShouldRetry = nil
	calls := 0
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastConfig(), func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestComputeBackoffCapped(t *testing.T) {
	t.Parallel()

	cfg := applyDefaults(Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, JitterFraction: 0})
	assert.Equal(t, time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 3*time.Second, computeBackoff(2, cfg), "backoff is capped")
}

func TestOnRetryCalledPerSleep(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errTransient
	})
	assert.Equal(t, []int{1, 2}, attempts, "no callback after the final attempt")
}
