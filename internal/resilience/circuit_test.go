package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(minRequests int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(minRequests, 0.5, time.Minute)
	b.now = clock.now
	return b, clock
}

func TestBreakerTransitions(t *testing.T) {
	b, clock := newTestBreaker(2)
	ctx := context.Background()
	boom := errors.New("connection refused")
	fail := func(context.Context) error { return boom }

	require.ErrorIs(t, b.Execute(ctx, fail), boom)
	require.Equal(t, Closed, b.State())
	require.ErrorIs(t, b.Execute(ctx, fail), boom)
	require.Equal(t, Open, b.State())

	calls := 0
	err := b.Execute(ctx, func(context.Context) error { calls++; return nil })
	require.ErrorIs(t, err, ErrOpenCircuit)
	require.Zero(t, calls)

	clock.advance(time.Minute)
	require.True(t, b.Allow(ctx))
	require.Equal(t, HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "only one probe while half-open")
	b.Report(ctx, true)
	require.Equal(t, Closed, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(1)
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, Open, b.State())

	clock.advance(time.Minute)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerIgnoredErrorsCountAsSuccess(t *testing.T) {
	b, _ := newTestBreaker(1)
	b.WithIgnore(func(err error) bool { return errors.Is(err, errNotFound) })

	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return errNotFound })
		require.ErrorIs(t, err, errNotFound)
	}
	require.Equal(t, Closed, b.State())
}

func TestBreakerCallerCancellationIsNotAFailure(t *testing.T) {
	b, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, Closed, b.State())
}

func TestBreakerCancelledProbeKeepsHalfOpen(t *testing.T) {
	b, clock := newTestBreaker(1)
	b.Report(context.Background(), false)
	require.Equal(t, Open, b.State())

	clock.advance(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	err := b.Execute(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, HalfOpen, b.State())

	calls := 0
	err = b.Execute(context.Background(), func(context.Context) error { calls++; return errors.New("still down") })
	require.EqualError(t, err, "still down")
	require.Equal(t, 1, calls, "probe slot is released after a cancelled probe")
	require.Equal(t, Open, b.State())
}

func TestBreakerCancelledCallsDoNotDiluteFailures(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	}

	boom := errors.New("connection refused")
	_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	require.Equal(t, Closed, b.State())
	_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	require.Equal(t, Open, b.State())
}

func TestBreakerMetrics(t *testing.T) {
	MustRegisterMetrics("test", prometheus.NewRegistry())

	b, clock := newTestBreaker(1)
	b.WithTarget("metrics_probe")
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerState.WithLabelValues("metrics_probe")))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerOpenedTotal.WithLabelValues("metrics_probe")))

	clock.advance(time.Minute)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(BreakerState.WithLabelValues("metrics_probe")))

	b.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(BreakerState.WithLabelValues("metrics_probe")))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerTransitions.WithLabelValues("metrics_probe", "half_open", "closed")))
}
