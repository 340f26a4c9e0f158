package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaze-mesh/kaze/internal/metrics"
)

func TestUnlimitedWhenNoBucketsConfigured(t *testing.T) {
	l := New(Config{}, nil)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Acquire(ctx, 1, "ping"))
	}
}

func TestTotalBucketBlocksUntilRefill(t *testing.T) {
	l := New(Config{
		Total: BucketConfig{Max: 1, Initial: 1, Refill: 1, Interval: 20 * time.Millisecond},
	}, nil)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, 1, "ping"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, 1, "ping"))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New(Config{
		Total: BucketConfig{Max: 1, Initial: 0, Refill: 1, Interval: time.Hour},
	}, nil)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, 1, "ping")
	require.Error(t, err)
}

func TestPerIdentBucketsAreIndependent(t *testing.T) {
	l := New(Config{
		PerIdent: BucketConfig{Max: 1, Initial: 1, Refill: 1, Interval: time.Hour},
	}, nil)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Acquire(context.Background(), 1, "ping"))
	require.NoError(t, l.Acquire(context.Background(), 2, "ping"))
	require.Error(t, l.Acquire(ctx, 1, "ping"))
}

func TestRateLimitMetricIncrementsWhenLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	l := New(Config{Total: BucketConfig{Max: 10, Initial: 10, Refill: 1, Interval: time.Hour}}, m)
	defer l.Close()

	require.NoError(t, l.Acquire(context.Background(), 1, "ping"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitTotal))
}
