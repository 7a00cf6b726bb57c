package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/internal/routes"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout_seconds", cfg.API.TimeoutSeconds)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.file_path", cfg.Storage.FilePath)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.redis.addr", cfg.Storage.Redis.Addr)
	v.SetDefault("storage.redis.db", cfg.Storage.Redis.DB)
	v.SetDefault("storage.redis.prefix", cfg.Storage.Redis.Prefix)
	v.SetDefault("storage.keys.booking_id", cfg.Storage.Keys.BookingID)
	v.SetDefault("storage.keys.created_at", cfg.Storage.Keys.CreatedAt)
	v.SetDefault("watchdog.enabled", cfg.Watchdog.Enabled)
	v.SetDefault("watchdog.interval_seconds", cfg.Watchdog.IntervalSeconds)
	v.SetDefault("watchdog.threshold_seconds", cfg.Watchdog.ThresholdSeconds)
	v.SetDefault("watchdog.cancel_reason", cfg.Watchdog.CancelReason)
	for key, path := range cfg.Routes {
		v.SetDefault("routes."+key, path)
	}
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.session_cookie", cfg.HTTP.SessionCookie)
	v.SetDefault("http.metrics", cfg.HTTP.Metrics)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("credentials.key_store_path", cfg.Credentials.KeyStorePath)
	v.SetDefault("credentials.token_path", cfg.Credentials.TokenPath)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if !v.IsSet("api.base_url") {
			return Config{}, fmt.Errorf("api.base_url is required for config_version %d", CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a loaded configuration.
func Validate(cfg Config) error {
	if err := validateAPIConfig(cfg.API); err != nil {
		return err
	}
	if err := validateStorageConfig(cfg.Storage); err != nil {
		return err
	}
	if err := validateWatchdogConfig(cfg.Watchdog); err != nil {
		return err
	}
	if _, err := routes.DefaultTable().WithOverrides(cfg.Routes); err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	if strings.TrimSpace(cfg.HTTP.SessionCookie) == "" {
		return fmt.Errorf("http.session_cookie is required")
	}
	return nil
}

func validateAPIConfig(cfg APIConfig) error {
	parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must include scheme and host (e.g. https://api.example.com)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https")
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must not be negative")
	}
	return nil
}

func validateStorageConfig(cfg StorageConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case kvstore.BackendMemory:
	case kvstore.BackendFile, "":
		if strings.TrimSpace(cfg.FilePath) == "" {
			return fmt.Errorf("storage.file_path is required for the file backend")
		}
	case kvstore.BackendSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case kvstore.BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported storage.backend %q", cfg.Backend)
	}
	if cfg.Keys.BookingID != "" && cfg.Keys.BookingID == cfg.Keys.CreatedAt {
		return fmt.Errorf("storage.keys.booking_id and storage.keys.created_at must differ")
	}
	return nil
}

func validateWatchdogConfig(cfg WatchdogConfig) error {
	if cfg.IntervalSeconds < 0 {
		return fmt.Errorf("watchdog.interval_seconds must not be negative")
	}
	if cfg.ThresholdSeconds < 0 {
		return fmt.Errorf("watchdog.threshold_seconds must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Storage.FilePath = expandEnv(cfg.Storage.FilePath)
	cfg.Storage.SQLitePath = expandEnv(cfg.Storage.SQLitePath)
	cfg.Credentials.KeyStorePath = expandEnv(cfg.Credentials.KeyStorePath)
	cfg.Credentials.TokenPath = expandEnv(cfg.Credentials.TokenPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
