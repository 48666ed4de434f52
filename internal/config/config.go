// Package config holds the application's configuration model and loader.
package config

import (
	"fmt"
	"time"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Behavior BehaviorConfig `mapstructure:"behavior"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
	Geo      GeoConfig      `mapstructure:"geo"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds

	// ProxySecret, when set, lets an upstream proxy presenting it override
	// the admission cost and principal identity headers. Empty (the default)
	// ignores both headers; they are forgeable by rate-limited callers.
	ProxySecret string `mapstructure:"proxy_secret"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LimitsConfig configures the admission windows. Endpoints absent from the
// table fall back to the global default; the table is immutable after load.
type LimitsConfig struct {
	DefaultMaxUnits      int                       `mapstructure:"default_max_units"`
	DefaultWindowSeconds int                       `mapstructure:"default_window_seconds"`
	OffHoursPolicy       string                    `mapstructure:"off_hours_policy"`
	LoadThreshold        float64                   `mapstructure:"load_threshold"`
	StoreTimeoutMS       int                       `mapstructure:"store_timeout_ms"`
	Endpoints            map[string]EndpointConfig `mapstructure:"endpoints"`
}

type EndpointConfig struct {
	MaxUnits           int     `mapstructure:"max_units"`
	WindowSeconds      int     `mapstructure:"window_seconds"`
	Strict             bool    `mapstructure:"strict"`
	RejectAnomalyAbove float64 `mapstructure:"reject_anomaly_above"`
}

type BehaviorConfig struct {
	LookbackSeconds int `mapstructure:"lookback_seconds"`
	BaselineCount   int `mapstructure:"baseline_count"`
	Workers         int `mapstructure:"workers"`
}

type AdvisorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type GeoConfig struct {
	CacheTTLSeconds int               `mapstructure:"cache_ttl_seconds"`
	Networks        map[string]string `mapstructure:"networks"` // CIDR -> country code
}

type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SecretsConfig struct {
	// Source is "env" or "vault".
	Source string `mapstructure:"source"`

	// KeySeed is the key-derivation seed when Source is "env".
	KeySeed string `mapstructure:"key_seed"`

	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultPath  string `mapstructure:"vault_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// StoreTimeout returns the hot-path counter store timeout.
func (c *LimitsConfig) StoreTimeout() time.Duration {
	if c.StoreTimeoutMS <= 0 {
		return constants.DefaultStoreTimeout
	}
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// OffHours returns the validated off-hours policy, defaulting to relax.
func (c *LimitsConfig) OffHours() constants.OffHoursPolicy {
	if constants.OffHoursPolicy(c.OffHoursPolicy) == constants.OffHoursTighten {
		return constants.OffHoursTighten
	}
	return constants.OffHoursRelax
}

// LimitTable converts the configured endpoint map into the immutable domain
// limits table.
func (c *LimitsConfig) LimitTable() models.EndpointLimitTable {
	table := make(models.EndpointLimitTable, len(c.Endpoints))
	for name, ep := range c.Endpoints {
		limit := models.EndpointLimit{
			MaxUnits:           ep.MaxUnits,
			Window:             time.Duration(ep.WindowSeconds) * time.Second,
			FailurePolicy:      constants.FailurePolicyBestEffort,
			RejectAnomalyAbove: ep.RejectAnomalyAbove,
		}
		if ep.Strict {
			limit.FailurePolicy = constants.FailurePolicyStrict
		}
		if limit.MaxUnits <= 0 {
			limit.MaxUnits = c.DefaultMaxUnits
		}
		if limit.Window <= 0 {
			limit.Window = time.Duration(c.DefaultWindowSeconds) * time.Second
		}
		table[name] = limit
	}
	return table
}

// Lookback returns the behavior profile lookback window.
func (c *BehaviorConfig) Lookback() time.Duration {
	if c.LookbackSeconds <= 0 {
		return constants.BehaviorLookbackWindow
	}
	return time.Duration(c.LookbackSeconds) * time.Second
}

// Timeout returns the advisor call timeout.
func (c *AdvisorConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return constants.DefaultAdvisorTimeout
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Limits.DefaultMaxUnits <= 0 {
		return fmt.Errorf("limits.default_max_units must be positive")
	}
	if c.Limits.DefaultWindowSeconds <= 0 {
		return fmt.Errorf("limits.default_window_seconds must be positive")
	}
	if c.Limits.LoadThreshold < 0 || c.Limits.LoadThreshold > 1 {
		return fmt.Errorf("limits.load_threshold must be in [0,1]")
	}
	if policy := constants.OffHoursPolicy(c.Limits.OffHoursPolicy); policy != constants.OffHoursRelax && policy != constants.OffHoursTighten {
		return fmt.Errorf("limits.off_hours_policy must be %q or %q", constants.OffHoursRelax, constants.OffHoursTighten)
	}
	if c.Audit.Enabled && len(c.Audit.Brokers) == 0 {
		return fmt.Errorf("audit.brokers required when audit is enabled")
	}
	if c.Secrets.Source == "vault" && c.Secrets.VaultAddr == "" {
		return fmt.Errorf("secrets.vault_addr required when secrets.source is vault")
	}
	return nil
}
