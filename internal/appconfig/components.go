package appconfig

import (
	"time"

	"pkt.systems/wayfare/internal/apiclient"
	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/internal/pending"
	"pkt.systems/wayfare/internal/routes"
	"pkt.systems/wayfare/internal/watchdog"
)

// KVStore returns the storage backend settings.
func (c Config) KVStore() kvstore.Config {
	return kvstore.Config{
		Backend:     c.Storage.Backend,
		FilePath:    c.Storage.FilePath,
		SQLitePath:  c.Storage.SQLitePath,
		RedisAddr:   c.Storage.Redis.Addr,
		RedisDB:     c.Storage.Redis.DB,
		RedisPrefix: c.Storage.Redis.Prefix,
	}
}

// PendingKeys returns the marker key names.
func (c Config) PendingKeys() pending.Keys {
	return pending.Keys{BookingID: c.Storage.Keys.BookingID, CreatedAt: c.Storage.Keys.CreatedAt}
}

// APIClient returns the REST client settings.
func (c Config) APIClient() apiclient.Config {
	return apiclient.Config{
		BaseURL:   c.API.BaseURL,
		Timeout:   time.Duration(c.API.TimeoutSeconds) * time.Second,
		UserAgent: c.API.UserAgent,
	}
}

// WatchdogSettings returns the watchdog tuning.
func (c Config) WatchdogSettings() watchdog.Config {
	return watchdog.Config{
		Interval:  time.Duration(c.Watchdog.IntervalSeconds) * time.Second,
		Threshold: time.Duration(c.Watchdog.ThresholdSeconds) * time.Second,
		Reason:    c.Watchdog.CancelReason,
	}
}

// RouteTable returns the default routes with configured overrides.
func (c Config) RouteTable() (routes.Table, error) {
	return routes.DefaultTable().WithOverrides(c.Routes)
}
