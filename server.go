// Package wayfare is the client shell of the travel marketplace: it decides
// where a signed-in user lands and expires unpaid pending bookings.
package wayfare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"
	"pkt.systems/pslog"
	"pkt.systems/wayfare/httpapi"
	"pkt.systems/wayfare/internal/apiclient"
	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/internal/logx"
	"pkt.systems/wayfare/internal/metrics"
	"pkt.systems/wayfare/internal/pending"
	"pkt.systems/wayfare/internal/roles"
	"pkt.systems/wayfare/internal/routes"
	"pkt.systems/wayfare/internal/watchdog"
	"pkt.systems/wayfare/schema"
)

// Config configures the shell.
type Config struct {
	HTTP     httpapi.Config
	Routes   routes.Table
	Keys     pending.Keys
	Watchdog watchdog.Config
}

// Deps captures dependencies required to build the shell.
type Deps struct {
	Client   *apiclient.Client
	Store    kvstore.Store
	Resolver *roles.Resolver
	Clock    clockwork.Clock
	Metrics  *metrics.Metrics
	// MetricsHandler serves /metrics when HTTP metrics are enabled.
	MetricsHandler http.Handler
	Logger         pslog.Logger
}

// Option toggles shell components.
type Option func(*options)

type options struct {
	enableHTTP     bool
	enableWatchdog bool
}

// WithHTTP enables the browser-facing HTTP server.
func WithHTTP() Option {
	return func(o *options) { o.enableHTTP = true }
}

// WithWatchdog enables the pending booking watchdog.
func WithWatchdog() Option {
	return func(o *options) { o.enableWatchdog = true }
}

// Shell composes the entry flow, the watchdog, and the HTTP server.
type Shell struct {
	cfg      Config
	options  options
	client   *apiclient.Client
	store    kvstore.Store
	repo     *pending.Repository
	resolver *roles.Resolver
	metrics  *metrics.Metrics
	watchdog *watchdog.Watchdog
	httpSrv  *httpapi.Server
	logger   pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh    chan error
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// New constructs a shell. Without options it only serves the entry flow.
func New(cfg Config, deps Deps, opts ...Option) (*Shell, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if deps.Client == nil {
		return nil, errors.New("api client dependency is required")
	}
	if deps.Store == nil {
		return nil, errors.New("storage dependency is required")
	}
	if cfg.Routes.Targets == nil {
		cfg.Routes = routes.DefaultTable()
	}
	if err := cfg.Routes.Validate(); err != nil {
		return nil, err
	}
	repo, err := pending.NewRepository(deps.Store, cfg.Keys)
	if err != nil {
		return nil, err
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = roles.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Shell{
		cfg:      cfg,
		options:  o,
		client:   deps.Client,
		store:    deps.Store,
		repo:     repo,
		resolver: resolver,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if o.enableWatchdog {
		wd, err := watchdog.New(cfg.Watchdog, repo, deps.Client,
			watchdog.WithClock(clock),
			watchdog.WithLogger(deps.Logger),
			watchdog.WithMetrics(deps.Metrics),
		)
		if err != nil {
			return nil, err
		}
		s.watchdog = wd
	}
	if o.enableHTTP {
		httpDeps := httpapi.Deps{
			Entrance: s,
			Markers:  repo,
			Metrics:  deps.MetricsHandler,
			Clock:    clock,
		}
		if s.watchdog != nil {
			httpDeps.Watchdog = s.watchdog
		}
		srv, err := httpapi.NewServer(cfg.HTTP, httpDeps)
		if err != nil {
			return nil, err
		}
		s.httpSrv = srv
	}
	return s, nil
}

// Repository returns the pending booking repository.
func (s *Shell) Repository() *pending.Repository {
	return s.repo
}

// Watchdog returns the watchdog, or nil when it is disabled.
func (s *Shell) Watchdog() *watchdog.Watchdog {
	return s.watchdog
}

// Enter runs the app-entry flow with the client's own credentials.
func (s *Shell) Enter(ctx context.Context) (schema.Landing, error) {
	return s.enter(ctx, s.client)
}

// EnterWithToken runs the app-entry flow for a browser's bearer token. An
// empty token lands on the login route without calling the API.
func (s *Shell) EnterWithToken(ctx context.Context, token string) (schema.Landing, error) {
	if token == "" {
		return s.loginLanding(), nil
	}
	return s.enter(ctx, s.client.WithTokenSource(apiclient.StaticToken(token)))
}

// Land resolves a known session without calling the API.
func (s *Shell) Land(session *schema.AuthSession) (schema.Landing, error) {
	target := s.resolver.Resolve(session)
	path, err := s.cfg.Routes.Path(target)
	if err != nil {
		return schema.Landing{}, err
	}
	s.metrics.Landing(string(target))
	return schema.Landing{
		Authenticated: true,
		Target:        target,
		Path:          path,
		Rule:          s.resolver.Explain(session).Name,
		Session:       session,
	}, nil
}

// Navigate runs the entry flow and hands the result to nav.
func (s *Shell) Navigate(ctx context.Context, nav routes.Navigator) (schema.Landing, error) {
	landing, err := s.Enter(ctx)
	if err != nil {
		return schema.Landing{}, err
	}
	if err := nav.Navigate(ctx, landing.Target, landing.Path); err != nil {
		return schema.Landing{}, err
	}
	return landing, nil
}

func (s *Shell) enter(ctx context.Context, client *apiclient.Client) (schema.Landing, error) {
	log := s.log(ctx)
	session, err := client.Me(ctx)
	if err != nil {
		if errors.Is(err, schema.ErrUnauthenticated) || errors.Is(err, schema.ErrForbidden) || errors.Is(err, schema.ErrNoCredentials) {
			log.Info("entry unauthenticated", "err", err)
			return s.loginLanding(), nil
		}
		return schema.Landing{}, fmt.Errorf("fetch session: %w", err)
	}
	landing, err := s.Land(session)
	if err != nil {
		return schema.Landing{}, err
	}
	log = logx.WithTarget(log.With("user", session.UserID()), landing.Target, landing.Path)
	log.Info("entry resolved", "rule", landing.Rule)
	return landing, nil
}

func (s *Shell) loginLanding() schema.Landing {
	return schema.Landing{Path: s.cfg.Routes.Login}
}

func (s *Shell) log(ctx context.Context) pslog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return pslog.Ctx(ctx)
}

// Start launches the enabled components.
func (s *Shell) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.options.enableHTTP && !s.options.enableWatchdog {
		return errors.New("no services enabled")
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("shell start rejected", "reason", "already started")
		return errors.New("shell already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.stopped = make(chan struct{})
	s.started = true
	runCtx := s.ctx
	s.mu.Unlock()

	log := s.log(runCtx)
	log.Info(
		"shell start",
		"http", s.options.enableHTTP,
		"watchdog", s.options.enableWatchdog,
		"http_addr", s.cfg.HTTP.Addr,
		"api", s.client.BaseURL(),
	)
	if s.watchdog != nil {
		s.watchdog.Start(runCtx)
		if watcher, ok := s.store.(kvstore.Watcher); ok {
			if err := watcher.Watch(runCtx, s.watchdog.Poke); err != nil {
				log.Warn("storage watch unavailable", "err", err)
			}
		}
	}
	if s.httpSrv != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := httpapi.ListenAndServe(runCtx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

// Wait blocks until the shell context ends or a component fails, then
// returns once Stop has drained the watchdog and the HTTP server.
func (s *Shell) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("shell not started")
	}

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		if err != nil {
			s.log(ctx).Error("shell stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return s.Stop(context.Background())
	}
}

// Stop tears down the watchdog and the HTTP server. Every caller blocks
// until teardown has finished or ctx ends.
func (s *Shell) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	stopped := s.stopped
	s.mu.Unlock()
	if !started {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := s.log(context.Background())
	s.stopOnce.Do(func() {
		log.Info("shell stop requested")
		go s.teardown(stopped)
	})
	select {
	case <-ctx.Done():
		log.Warn("shell stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-stopped:
		return nil
	}
}

func (s *Shell) teardown(stopped chan struct{}) {
	defer close(stopped)
	// The watchdog finishes an in-flight cancellation before the store closes.
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log(context.Background()).Info("shell stopped")
}
