package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/pslog"
	"pkt.systems/wayfare"
	"pkt.systems/wayfare/httpapi"
	"pkt.systems/wayfare/internal/apiclient"
	"pkt.systems/wayfare/internal/appconfig"
	"pkt.systems/wayfare/internal/credstore"
	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/internal/metrics"
	"pkt.systems/wayfare/internal/version"
)

// app holds the components every command builds from the config file.
type app struct {
	cfg      appconfig.Config
	store    kvstore.Store
	creds    *credstore.Store
	client   *apiclient.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   pslog.Logger
}

func openApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := pslog.Ctx(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	creds, err := credstore.NewStoreWithLogger(cfg.Credentials.KeyStorePath, cfg.Credentials.TokenPath, logger)
	if err != nil {
		return nil, err
	}
	clientCfg := cfg.APIClient()
	if clientCfg.UserAgent == "" || clientCfg.UserAgent == apiclient.DefaultUserAgent {
		clientCfg.UserAgent = version.UserAgent()
	}
	client, err := apiclient.New(clientCfg, creds, m, logger)
	if err != nil {
		return nil, err
	}
	store, err := kvstore.Open(ctx, cfg.KVStore(), logger)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		store:    store,
		creds:    creds,
		client:   client,
		registry: registry,
		metrics:  m,
		logger:   logger,
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})
}

// shell builds the wayfare shell with the requested components.
func (a *app) shell(opts ...wayfare.Option) (*wayfare.Shell, error) {
	table, err := a.cfg.RouteTable()
	if err != nil {
		return nil, err
	}
	shellCfg := wayfare.Config{
		HTTP: httpapi.Config{
			Addr:          a.cfg.HTTP.Addr,
			SessionCookie: a.cfg.HTTP.SessionCookie,
			Metrics:       a.cfg.HTTP.Metrics,
			BasePath:      a.cfg.HTTP.BasePath,
		},
		Routes:   table,
		Keys:     a.cfg.PendingKeys(),
		Watchdog: a.cfg.WatchdogSettings(),
	}
	return wayfare.New(shellCfg, wayfare.Deps{
		Client:         a.client,
		Store:          a.store,
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler(),
		Logger:         a.logger,
	}, opts...)
}

func withApp(ctx context.Context, cfgPath string, fn func(*app) error) (err error) {
	a, err := openApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}
