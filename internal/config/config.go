// Package config loads and validates the supervisor's configuration: a
// YAML file on disk layered with the environment-variable overrides listed
// in the operator-facing configuration table.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TargetConfig describes the monitored web application.
type TargetConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// ServerConfig controls the coordination bus's listening address.
type ServerConfig struct {
	WebsocketPort string `yaml:"websocket_port" validate:"required"`
}

// EndpointConfig describes one monitored path, per spec §2's immutable
// Endpoint Descriptor.
type EndpointConfig struct {
	Path           string `yaml:"path" validate:"required"`
	Name           string `yaml:"name"`
	Critical       bool   `yaml:"critical"`
	TimeoutMs      int    `yaml:"timeout_ms" validate:"gte=0"`
	ExpectedStatus []int  `yaml:"expected_status"`
}

// UIProbeConfig controls the optional UI test-harness subprocess.
type UIProbeConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"gte=0"`
}

// PerformanceConfig holds the SLA threshold shared by the probe session's
// scoring pass and the independent SLA monitor loop.
type PerformanceConfig struct {
	SLAThresholdMs int `yaml:"sla_threshold_ms" validate:"required,gt=0"`
}

// SchedulerConfig controls the probe session's cadence.
type SchedulerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" validate:"required,gt=0"`
}

// AutoFixConfig is the master switch and tuning for the auto-fix engine.
type AutoFixConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxAttempts    int  `yaml:"max_attempts" validate:"gte=0"`
	CooldownSeconds int `yaml:"cooldown_seconds" validate:"gte=0"`
}

// KnowledgeConfig controls the fix-pattern knowledge store's external sink.
type KnowledgeConfig struct {
	PiecesIntegrationEnabled bool   `yaml:"pieces_integration_enabled"`
	SinkDir                  string `yaml:"sink_dir" validate:"required"`
}

// SLAMonitorConfig controls the independent SLA-monitor loop. SamplesPerTick
// and RollingWindowTicks are exposed explicitly because the source behavior
// they generalize (percentiles over a per-tick sample only) was ambiguous;
// the defaults preserve that observed per-tick-only behavior.
type SLAMonitorConfig struct {
	IntervalSeconds    int     `yaml:"interval_seconds" validate:"required,gt=0"`
	ToleranceFraction  float64 `yaml:"tolerance_fraction" validate:"gte=0"`
	SamplesPerTick     int     `yaml:"samples_per_tick" validate:"required,gt=0"`
	RollingWindowTicks int     `yaml:"rolling_window_ticks" validate:"required,gt=0"`
}

// RedisConfig points at the cache used to snapshot fix-pattern success
// rates between process restarts.
type RedisConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// LoggingConfig controls the supervisor's logrus output.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"required,oneof=json text"`
}

// Config is the root configuration document.
type Config struct {
	Target        TargetConfig     `yaml:"target"`
	Server        ServerConfig     `yaml:"server"`
	Performance   PerformanceConfig `yaml:"performance"`
	Scheduler     SchedulerConfig  `yaml:"scheduler"`
	AutoFix       AutoFixConfig    `yaml:"auto_fix"`
	Knowledge     KnowledgeConfig  `yaml:"knowledge"`
	SLAMonitor    SLAMonitorConfig `yaml:"sla_monitor"`
	Redis         RedisConfig      `yaml:"redis"`
	Logging       LoggingConfig    `yaml:"logging"`
	Endpoints     []EndpointConfig `yaml:"endpoints"`
	MockEndpoints []string         `yaml:"mock_endpoints"`
	UIProbe       UIProbeConfig    `yaml:"ui_probe"`
}

// Load reads, parses, applies defaults to, overrides from the environment,
// and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			WebsocketPort: "8080",
		},
		Performance: PerformanceConfig{
			SLAThresholdMs: 3000,
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 300,
		},
		AutoFix: AutoFixConfig{
			Enabled:         true,
			MaxAttempts:     3,
			CooldownSeconds: 60,
		},
		Knowledge: KnowledgeConfig{
			PiecesIntegrationEnabled: false,
			SinkDir:                  "knowledge-base",
		},
		SLAMonitor: SLAMonitorConfig{
			IntervalSeconds:    60,
			ToleranceFraction:  0.10,
			SamplesPerTick:     3,
			RollingWindowTicks: 1,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Endpoints: []EndpointConfig{
			{Path: "/", Name: "homepage", Critical: true, TimeoutMs: 10000},
			{Path: "/dashboard", Name: "dashboard", Critical: true, TimeoutMs: 10000},
			{Path: "/api/health", Name: "api-health", Critical: true, TimeoutMs: 5000},
			{Path: "/api/v1/status", Name: "api-status", Critical: false, TimeoutMs: 5000},
			{Path: "/api/v1/analytics/status", Name: "analytics-status", Critical: false, TimeoutMs: 5000},
			{Path: "/api/v1/campaigns/status", Name: "campaigns-status", Critical: false, TimeoutMs: 5000},
			{Path: "/api/v1/monitoring/status", Name: "monitoring-status", Critical: false, TimeoutMs: 5000},
		},
		MockEndpoints: []string{
			"/api/v1/analytics/mock",
			"/api/v1/campaigns/mock",
			"/api/v1/monitoring/mock",
			"/api/v1/alerts/mock",
		},
		UIProbe: UIProbeConfig{
			Enabled:        false,
			TimeoutSeconds: 600,
		},
	}
}

// loadFromEnv applies the override table's environment variables on top of
// whatever the config file and defaults already set.
func loadFromEnv(config *Config) error {
	if v := os.Getenv("TARGET_URL"); v != "" {
		config.Target.BaseURL = v
	}
	if v := os.Getenv("WEBSOCKET_PORT"); v != "" {
		config.Server.WebsocketPort = v
	}
	if v := os.Getenv("PERFORMANCE_SLA"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PERFORMANCE_SLA: %w", err)
		}
		config.Performance.SLAThresholdMs = ms
	}
	if v := os.Getenv("MONITORING_INTERVAL"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MONITORING_INTERVAL: %w", err)
		}
		config.Scheduler.IntervalSeconds = seconds
	}
	if v := os.Getenv("PIECES_INTEGRATION_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PIECES_INTEGRATION_ENABLED: %w", err)
		}
		config.Knowledge.PiecesIntegrationEnabled = enabled
	}
	if v := os.Getenv("AUTO_FIX_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTO_FIX_ENABLED: %w", err)
		}
		config.AutoFix.Enabled = enabled
	}
	if v := os.Getenv("SLA_MONITOR_INTERVAL"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SLA_MONITOR_INTERVAL: %w", err)
		}
		config.SLAMonitor.IntervalSeconds = seconds
	}
	if v := os.Getenv("SLA_TOLERANCE"); v != "" {
		fraction, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SLA_TOLERANCE: %w", err)
		}
		config.SLAMonitor.ToleranceFraction = fraction
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	return nil
}

var validatorInstance = validator.New()

func validate(config *Config) error {
	if err := validatorInstance.Struct(config); err != nil {
		return err
	}
	if config.SLAMonitor.RollingWindowTicks < 1 {
		return fmt.Errorf("sla_monitor.rolling_window_ticks must be at least 1")
	}
	return nil
}

// SchedulerInterval returns the scheduler cadence as a time.Duration.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// SLAMonitorInterval returns the SLA monitor's tick cadence as a time.Duration.
func (c *Config) SLAMonitorInterval() time.Duration {
	return time.Duration(c.SLAMonitor.IntervalSeconds) * time.Second
}
