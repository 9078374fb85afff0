package common

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the process-wide configuration (spec §6).
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	HTTP      HTTPConfig      `toml:"http"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Cookie    CookieConfig    `toml:"cookie"`
}

type StorageConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// HTTPConfig covers the C1 HTTP client's timeouts and redirect policy.
type HTTPConfig struct {
	TimeoutTotalSeconds   int    `toml:"timeout_total_seconds"`
	TimeoutConnectSeconds int    `toml:"timeout_connect_seconds"`
	TimeoutReadSeconds    int    `toml:"timeout_read_seconds"`
	MaxRedirects          int    `toml:"max_redirects"`
	UserAgent             string `toml:"user_agent"`
}

// SchedulerConfig covers C7's tick loop and worker pool.
type SchedulerConfig struct {
	TickIntervalSeconds int `toml:"tick_interval_seconds"`
	PoolSize            int `toml:"pool_size"`
	RunTimeoutMultiplier int `toml:"run_timeout_multiplier"`
}

// CookieConfig covers C7's cookie-maintenance job intervals.
type CookieConfig struct {
	ExpiringWarnHours   int `toml:"expiring_warn_hours"`
	ExpiringNotifyHours int `toml:"expiring_notify_hours"`
}

// Default returns the configuration with spec §6's documented defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Path: "./data/webwatch.db"},
		Logging: LoggingConfig{Level: "info", Output: []string{"stdout"}, TimeFormat: "15:04:05.000"},
		HTTP: HTTPConfig{
			TimeoutTotalSeconds:   30,
			TimeoutConnectSeconds: 10,
			TimeoutReadSeconds:    10,
			MaxRedirects:          10,
			UserAgent:             "webwatch/1.0",
		},
		Scheduler: SchedulerConfig{
			TickIntervalSeconds:  1,
			PoolSize:             5,
			RunTimeoutMultiplier: 2,
		},
		Cookie: CookieConfig{
			ExpiringWarnHours:   24,
			ExpiringNotifyHours: 48,
		},
	}
}

// Load reads a TOML config file at path, falling back to Default
// values for anything the file omits.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
