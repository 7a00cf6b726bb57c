package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/wayfare/internal/apiclient"
	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/internal/pending"
	"pkt.systems/wayfare/internal/routes"
	"pkt.systems/wayfare/internal/watchdog"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	API           APIConfig         `mapstructure:"api" yaml:"api"`
	Storage       StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Watchdog      WatchdogConfig    `mapstructure:"watchdog" yaml:"watchdog"`
	Routes        map[string]string `mapstructure:"routes" yaml:"routes"`
	HTTP          HTTPConfig        `mapstructure:"http" yaml:"http"`
	Credentials   CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// APIConfig points at the marketplace REST API.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
}

// StorageConfig selects the local key-value backend.
type StorageConfig struct {
	Backend    string      `mapstructure:"backend" yaml:"backend"`
	FilePath   string      `mapstructure:"file_path" yaml:"file_path"`
	SQLitePath string      `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	Redis      RedisConfig `mapstructure:"redis" yaml:"redis"`
	Keys       KeysConfig  `mapstructure:"keys" yaml:"keys"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr   string `mapstructure:"addr" yaml:"addr"`
	DB     int    `mapstructure:"db" yaml:"db"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// KeysConfig names the pending booking marker keys.
type KeysConfig struct {
	BookingID string `mapstructure:"booking_id" yaml:"booking_id"`
	CreatedAt string `mapstructure:"created_at" yaml:"created_at"`
}

// WatchdogConfig tunes the pending booking watchdog.
type WatchdogConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	IntervalSeconds  int    `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	ThresholdSeconds int    `mapstructure:"threshold_seconds" yaml:"threshold_seconds"`
	CancelReason     string `mapstructure:"cancel_reason" yaml:"cancel_reason"`
}

// HTTPConfig configures the HTTP shell.
type HTTPConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	SessionCookie string `mapstructure:"session_cookie" yaml:"session_cookie"`
	Metrics       bool   `mapstructure:"metrics" yaml:"metrics"`
	BasePath      string `mapstructure:"base_path" yaml:"base_path"`
}

// CredentialsConfig locates the encrypted API token.
type CredentialsConfig struct {
	KeyStorePath string `mapstructure:"key_store_path" yaml:"key_store_path"`
	TokenPath    string `mapstructure:"token_path" yaml:"token_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".wayfare")
	keys := pending.DefaultKeys()
	return Config{
		ConfigVersion: CurrentConfigVersion,
		API: APIConfig{
			BaseURL:        "http://localhost:3000",
			TimeoutSeconds: int(apiclient.DefaultTimeout.Seconds()),
			UserAgent:      apiclient.DefaultUserAgent,
		},
		Storage: StorageConfig{
			Backend:    kvstore.BackendFile,
			FilePath:   filepath.Join(root, "state", "storage.json"),
			SQLitePath: filepath.Join(root, "state", "storage.db"),
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				DB:     0,
				Prefix: kvstore.DefaultRedisPrefix,
			},
			Keys: KeysConfig{
				BookingID: keys.BookingID,
				CreatedAt: keys.CreatedAt,
			},
		},
		Watchdog: WatchdogConfig{
			Enabled:          true,
			IntervalSeconds:  int(watchdog.DefaultInterval.Seconds()),
			ThresholdSeconds: int(watchdog.DefaultThreshold.Seconds()),
			CancelReason:     watchdog.DefaultReason,
		},
		Routes: routes.DefaultTable().Map(),
		HTTP: HTTPConfig{
			Addr:          ":27580",
			SessionCookie: "wayfare_token",
			Metrics:       true,
		},
		Credentials: CredentialsConfig{
			KeyStorePath: filepath.Join(root, "state", "keys.bundle"),
			TokenPath:    filepath.Join(root, "state", "token.enc"),
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wayfare", "config.yaml"), nil
}
