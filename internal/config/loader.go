package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment variables.
// Defaults mirror the documented fallback behavior: 60 units / 60 s global
// window, relax off-hours policy, no advisor, env-sourced key seed.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/admission/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("ADMISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.proxy_secret", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("limits.default_max_units", 60)
	v.SetDefault("limits.default_window_seconds", 60)
	v.SetDefault("limits.off_hours_policy", "relax")
	v.SetDefault("limits.load_threshold", 0.7)
	v.SetDefault("limits.store_timeout_ms", 100)
	// Seed table carried over from the legacy deployment.
	v.SetDefault("limits.endpoints.api.max_units", 300)
	v.SetDefault("limits.endpoints.api.window_seconds", 3600)
	v.SetDefault("limits.endpoints.auth.max_units", 20)
	v.SetDefault("limits.endpoints.auth.window_seconds", 300)
	v.SetDefault("limits.endpoints.auth.strict", true)

	v.SetDefault("behavior.lookback_seconds", 300)
	v.SetDefault("behavior.baseline_count", 120)
	v.SetDefault("behavior.workers", 0) // 0 = derive from CPU count

	v.SetDefault("advisor.enabled", false)
	v.SetDefault("advisor.timeout_ms", 50)

	v.SetDefault("geo.cache_ttl_seconds", 1800)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.topic", "admission-audit")

	v.SetDefault("secrets.source", "env")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "admission")
}
