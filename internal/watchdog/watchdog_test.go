package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pkt.systems/wayfare/internal/apiclient"
	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/internal/metrics"
	"pkt.systems/wayfare/internal/pending"
	"pkt.systems/wayfare/schema"
)

type cancelCall struct {
	ID     schema.BookingID
	Reason string
}

type fakeCanceller struct {
	mu      sync.Mutex
	calls   []cancelCall
	err     error
	outcome apiclient.CancelOutcome
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCanceller) CancelBooking(ctx context.Context, id schema.BookingID, reason string) (apiclient.CancelOutcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cancelCall{ID: id, Reason: reason})
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if f.err != nil {
		return "", f.err
	}
	if f.outcome == "" {
		return apiclient.CancelOutcomeCancelled, nil
	}
	return f.outcome, nil
}

func (f *fakeCanceller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	clock     *clockwork.FakeClock
	store     *kvstore.Memory
	repo      *pending.Repository
	canceller *fakeCanceller
	metrics   *metrics.Metrics
	watchdog  *Watchdog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:     clockwork.NewFakeClockAt(time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)),
		store:     kvstore.NewMemory(),
		canceller: &fakeCanceller{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	repo, err := pending.NewRepository(f.store, pending.DefaultKeys())
	require.NoError(t, err)
	f.repo = repo
	w, err := New(Config{}, repo, f.canceller, WithClock(f.clock), WithMetrics(f.metrics))
	require.NoError(t, err)
	f.watchdog = w
	return f
}

func (f *fixture) arm(t *testing.T, id schema.BookingID, age time.Duration) {
	t.Helper()
	_, err := f.repo.Arm(context.Background(), id, f.clock.Now().Add(-age))
	require.NoError(t, err)
}

func (f *fixture) marker(t *testing.T) (schema.PendingBooking, bool) {
	t.Helper()
	marker, ok, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	return marker, ok
}

func (f *fixture) checks(outcome Outcome) float64 {
	return testutil.ToFloat64(f.metrics.WatchdogChecks.WithLabelValues(string(outcome)))
}

func TestCheckExpiresOpaqueBookingIDs(t *testing.T) {
	for _, id := range []schema.BookingID{"bk+42==", "réserva-1", "B 1"} {
		f := newFixture(t)
		f.arm(t, id, time.Hour)

		outcome, err := f.watchdog.Check(context.Background())
		require.NoError(t, err, "id %q", id)
		assert.Equal(t, OutcomeExpired, outcome, "id %q", id)
		require.Equal(t, 1, f.canceller.count(), "id %q", id)
		assert.Equal(t, id, f.canceller.calls[0].ID)
		_, ok := f.marker(t)
		assert.False(t, ok, "id %q", id)
	}
}

func TestDefaults(t *testing.T) {
	f := newFixture(t)
	cfg := f.watchdog.Config()
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Threshold)
	assert.Equal(t, "payment window expired", cfg.Reason)

	_, err := New(Config{}, nil, f.canceller)
	assert.Error(t, err)
	_, err = New(Config{}, f.repo, nil)
	assert.Error(t, err)
}

func TestCheckExpiredCancelsOnceAndClears(t *testing.T) {
	f := newFixture(t)
	f.arm(t, "B1", 11*time.Minute)

	outcome, err := f.watchdog.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)
	require.Equal(t, 1, f.canceller.count())
	assert.Equal(t, cancelCall{ID: "B1", Reason: DefaultReason}, f.canceller.calls[0])
	_, ok := f.marker(t)
	assert.False(t, ok)

	outcome, err = f.watchdog.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Equal(t, 1, f.canceller.count())
}

func TestCheckArmedLeavesMarker(t *testing.T) {
	f := newFixture(t)
	f.arm(t, "B1", 5*time.Minute)

	outcome, err := f.watchdog.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeArmed, outcome)
	assert.Zero(t, f.canceller.count())
	marker, ok := f.marker(t)
	require.True(t, ok)
	assert.Equal(t, schema.BookingID("B1"), marker.BookingID)
}

func TestCheckIdleMakesNoCall(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.watchdog.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Zero(t, f.canceller.count())
}

func TestCheckCancelFailureStillClears(t *testing.T) {
	f := newFixture(t)
	f.canceller.err = errors.New("dial tcp: connection refused")
	f.arm(t, "B1", 11*time.Minute)

	outcome, err := f.watchdog.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)
	assert.Equal(t, 1, f.canceller.count())
	_, ok := f.marker(t)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingCancellation.WithLabelValues("failed")))
}

func TestCheckAlreadyResolvedClears(t *testing.T) {
	f := newFixture(t)
	f.canceller.outcome = apiclient.CancelOutcomeAlreadyResolved
	f.arm(t, "B1", time.Hour)

	outcome, err := f.watchdog.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)
	_, ok := f.marker(t)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingCancellation.WithLabelValues("already_resolved")))
}

func TestCheckThresholdBoundary(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want Outcome
	}{
		{age: 10 * time.Minute, want: OutcomeArmed},
		{age: 10*time.Minute + time.Millisecond, want: OutcomeExpired},
		{age: -time.Minute, want: OutcomeArmed},
	}
	for _, tc := range tests {
		f := newFixture(t)
		f.arm(t, "B1", tc.age)
		outcome, err := f.watchdog.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.want, outcome, "age %s", tc.age)
	}
}

func TestCheckCorruptMarkerClearsWithoutCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, pending.DefaultBookingIDKey, "B1"))
	require.NoError(t, f.store.Set(ctx, pending.DefaultCreatedAtKey, "not-a-time"))

	outcome, err := f.watchdog.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrupt, outcome)
	assert.Zero(t, f.canceller.count())
	_, ok, _ := f.store.Get(ctx, pending.DefaultBookingIDKey)
	assert.False(t, ok)
	_, ok, _ = f.store.Get(ctx, pending.DefaultCreatedAtKey)
	assert.False(t, ok)
}

type brokenMarkers struct{ err error }

func (b brokenMarkers) Get(context.Context) (schema.PendingBooking, bool, error) {
	return schema.PendingBooking{}, false, b.err
}

func (b brokenMarkers) Clear(context.Context) error { return b.err }

func TestCheckReturnsStorageErrors(t *testing.T) {
	boom := errors.New("disk gone")
	w, err := New(Config{}, brokenMarkers{err: boom}, &fakeCanceller{})
	require.NoError(t, err)
	_, err = w.Check(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestOverlappingChecksCoalesce(t *testing.T) {
	f := newFixture(t)
	f.canceller.entered = make(chan struct{}, 2)
	f.canceller.release = make(chan struct{})
	f.arm(t, "B1", 11*time.Minute)

	results := make(chan Outcome, 2)
	go func() {
		outcome, _ := f.watchdog.Check(context.Background())
		results <- outcome
	}()
	<-f.canceller.entered
	go func() {
		outcome, _ := f.watchdog.Check(context.Background())
		results <- outcome
	}()
	// Give the second check time to read the still present marker and join
	// the flight.
	time.Sleep(20 * time.Millisecond)
	close(f.canceller.release)

	assert.Equal(t, OutcomeExpired, <-results)
	second := <-results
	assert.Contains(t, []Outcome{OutcomeExpired, OutcomeIdle}, second)
	assert.Equal(t, 1, f.canceller.count())
}

func TestStartRunsImmediateCheck(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	f.arm(t, "B1", 11*time.Minute)

	f.watchdog.Start(context.Background())
	defer f.watchdog.Stop()

	require.Eventually(t, func() bool { return f.canceller.count() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := f.marker(t)
		return !ok
	}, time.Second, time.Millisecond)
}

func TestStartExpiresAfterThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	f.arm(t, "B1", 0)

	f.watchdog.Start(context.Background())
	defer f.watchdog.Stop()

	require.Eventually(t, func() bool { return f.checks(OutcomeArmed) == 1 }, time.Second, time.Millisecond)
	// Ten ticks bring elapsed to exactly the threshold: still armed.
	for i := 2; i <= 11; i++ {
		f.clock.Advance(DefaultInterval)
		want := float64(i)
		require.Eventually(t, func() bool { return f.checks(OutcomeArmed) == want }, time.Second, time.Millisecond)
	}
	assert.Zero(t, f.canceller.count())

	f.clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return f.canceller.count() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return f.checks(OutcomeExpired) == 1 }, time.Second, time.Millisecond)
	_, ok := f.marker(t)
	assert.False(t, ok)
}

func TestStopIsFinalAndIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)

	f.watchdog.Stop()
	f.watchdog.Start(context.Background())
	f.watchdog.Start(context.Background())
	require.Eventually(t, func() bool { return f.checks(OutcomeIdle) == 1 }, time.Second, time.Millisecond)
	f.watchdog.Stop()
	f.watchdog.Stop()

	f.arm(t, "B1", time.Hour)
	f.clock.Advance(5 * DefaultInterval)
	f.watchdog.Poke()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.canceller.count())
	assert.Equal(t, 1.0, f.checks(OutcomeIdle))
	_, ok := f.marker(t)
	assert.True(t, ok)
}

func TestStopOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.watchdog.Start(ctx)
	cancel()
	f.watchdog.Stop()
}

func TestPokeTriggersCheck(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	f.watchdog.Start(context.Background())
	defer f.watchdog.Stop()
	require.Eventually(t, func() bool { return f.checks(OutcomeIdle) == 1 }, time.Second, time.Millisecond)

	f.arm(t, "B1", 11*time.Minute)
	f.watchdog.Poke()
	require.Eventually(t, func() bool { return f.canceller.count() == 1 }, time.Second, time.Millisecond)
}
