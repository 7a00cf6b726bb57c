// Package watchdog cancels pending bookings whose payment window lapsed.
package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"pkt.systems/pslog"
	"pkt.systems/wayfare/internal/apiclient"
	"pkt.systems/wayfare/internal/logx"
	"pkt.systems/wayfare/internal/metrics"
	"pkt.systems/wayfare/schema"
)

const (
	// DefaultInterval is the tick period.
	DefaultInterval = 60 * time.Second
	// DefaultThreshold is how long a booking may stay pending.
	DefaultThreshold = 10 * time.Minute
	// DefaultReason is sent with the cancellation.
	DefaultReason = "payment window expired"
	// DefaultCancelTimeout bounds one cancellation call.
	DefaultCancelTimeout = 30 * time.Second
)

// Outcome is the result of one check.
type Outcome string

const (
	OutcomeIdle    Outcome = "idle"
	OutcomeArmed   Outcome = "armed"
	OutcomeExpired Outcome = "expired"
	OutcomeCorrupt Outcome = "corrupt"
)

// Markers is the marker storage the watchdog owns.
type Markers interface {
	Get(ctx context.Context) (schema.PendingBooking, bool, error)
	Clear(ctx context.Context) error
}

// Canceller cancels a booking through the API.
type Canceller interface {
	CancelBooking(ctx context.Context, id schema.BookingID, reason string) (apiclient.CancelOutcome, error)
}

// Config tunes the watchdog. Zero values take the defaults.
type Config struct {
	Interval      time.Duration
	Threshold     time.Duration
	Reason        string
	CancelTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Reason == "" {
		c.Reason = DefaultReason
	}
	if c.CancelTimeout <= 0 {
		c.CancelTimeout = DefaultCancelTimeout
	}
	return c
}

// Option customises a Watchdog.
type Option func(*Watchdog)

// WithClock sets the clock used for elapsed time and ticks.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Watchdog) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(logger pslog.Logger) Option {
	return func(w *Watchdog) {
		w.log = logger
	}
}

// WithMetrics records check outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watchdog) {
		w.metrics = m
	}
}

// Watchdog watches the pending booking marker.
type Watchdog struct {
	cfg       Config
	markers   Markers
	canceller Canceller
	clock     clockwork.Clock
	log       pslog.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group
	poke      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a watchdog.
func New(cfg Config, markers Markers, canceller Canceller, opts ...Option) (*Watchdog, error) {
	if markers == nil {
		return nil, errors.New("watchdog markers are required")
	}
	if canceller == nil {
		return nil, errors.New("watchdog canceller is required")
	}
	w := &Watchdog{
		cfg:       cfg.withDefaults(),
		markers:   markers,
		canceller: canceller,
		clock:     clockwork.NewRealClock(),
		poke:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Config returns the effective configuration.
func (w *Watchdog) Config() Config {
	return w.cfg
}

// Check runs one tick. Only storage errors are returned.
func (w *Watchdog) Check(ctx context.Context) (Outcome, error) {
	log := w.logger(ctx)
	marker, ok, err := w.markers.Get(ctx)
	if err != nil {
		if !errors.Is(err, schema.ErrInvalidMarker) {
			return "", err
		}
		log.Warn("watchdog marker corrupt; clearing", "err", err)
		if err := w.markers.Clear(ctx); err != nil {
			return OutcomeCorrupt, err
		}
		w.metrics.WatchdogCheck(string(OutcomeCorrupt))
		return OutcomeCorrupt, nil
	}
	if !ok {
		w.metrics.WatchdogCheck(string(OutcomeIdle))
		return OutcomeIdle, nil
	}
	log = logx.WithBooking(log, marker.BookingID)
	elapsed := marker.Elapsed(w.clock.Now())
	if elapsed <= w.cfg.Threshold {
		log.Trace("watchdog booking pending", "elapsed_ms", elapsed.Milliseconds())
		w.metrics.WatchdogCheck(string(OutcomeArmed))
		return OutcomeArmed, nil
	}
	_, err, _ = w.group.Do(string(marker.BookingID), func() (any, error) {
		w.expire(ctx, log, marker, elapsed)
		return nil, w.markers.Clear(context.WithoutCancel(ctx))
	})
	w.metrics.WatchdogCheck(string(OutcomeExpired))
	return OutcomeExpired, err
}

// expire attempts the cancellation. Failures are logged only.
func (w *Watchdog) expire(ctx context.Context, log pslog.Logger, marker schema.PendingBooking, elapsed time.Duration) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.CancelTimeout)
	defer cancel()
	log.Info("watchdog check expired", "elapsed_ms", elapsed.Milliseconds())
	outcome, err := w.canceller.CancelBooking(callCtx, marker.BookingID, w.cfg.Reason)
	if err != nil {
		log.Warn("watchdog cancel failed", "err", err)
		w.metrics.Cancellation("failed")
		return
	}
	log.Info("watchdog booking cancelled", "result", outcome)
	w.metrics.Cancellation(string(outcome))
}

// Start runs an immediate check and then one per interval until ctx ends
// or Stop is called. Starting a running watchdog is a no-op.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	ticker := w.clock.NewTicker(w.cfg.Interval)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, ticker, w.done)
}

// Stop cancels the loop and waits for it to exit. No check runs after Stop
// returns.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Poke requests an out-of-band check without blocking.
func (w *Watchdog) Poke() {
	select {
	case w.poke <- struct{}{}:
	default:
	}
}

func (w *Watchdog) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	log := w.logger(ctx)
	log.Debug("watchdog started", "interval", w.cfg.Interval, "threshold", w.cfg.Threshold)
	w.tick(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			log.Debug("watchdog stopped")
			return
		case <-ticker.Chan():
			w.tick(ctx, "interval")
		case <-w.poke:
			w.tick(ctx, "poke")
		}
	}
}

func (w *Watchdog) tick(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	outcome, err := w.Check(ctx)
	if err != nil {
		w.logger(ctx).Warn("watchdog check failed", "trigger", trigger, "outcome", outcome, "err", err)
		return
	}
	w.logger(ctx).Trace("watchdog check", "trigger", trigger, "outcome", outcome)
}

func (w *Watchdog) logger(ctx context.Context) pslog.Logger {
	if w.log != nil {
		return w.log
	}
	return pslog.Ctx(ctx)
}
