// Package config provides configuration management for the alert pipeline.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for the alert pipeline.
type Config struct {
	Detector    DetectorConfig    `mapstructure:"detector"`
	Probe       ProbeConfig       `mapstructure:"probe"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	Suppression SuppressionConfig `mapstructure:"suppression"`
	Forward     ForwardConfig     `mapstructure:"forward"`
	Report      ReportConfig      `mapstructure:"report"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DetectorConfig contains configuration for the in-process real-time detector.
type DetectorConfig struct {
	ServiceName    string             `mapstructure:"service_name"`
	LogDir         string             `mapstructure:"log_dir" validate:"required"`
	CheckInterval  time.Duration      `mapstructure:"check_interval" validate:"gte=0"`
	ThresholdsFile string             `mapstructure:"thresholds_file"` // Tuner export (json or yaml), optional
	Thresholds     DetectorThresholds `mapstructure:"thresholds"`
}

// DetectorThresholds are the static thresholds the tuner is allowed to adapt.
// They double as the tuner's "current" thresholds.
type DetectorThresholds struct {
	ErrorBurstCount       int           `mapstructure:"error_burst_count" validate:"gte=1"`
	ErrorBurstWindow      time.Duration `mapstructure:"error_burst_window"`
	LatencyThreshold      time.Duration `mapstructure:"latency_threshold"`
	AvailabilityErrorRate float64       `mapstructure:"availability_error_rate" validate:"gt=0,lte=1"`
}

// ProbeConfig configures the datastore connectivity probe used by the detector.
type ProbeConfig struct {
	Kind        string        `mapstructure:"kind" validate:"oneof=none sql http"`
	Driver      string        `mapstructure:"driver" validate:"omitempty,oneof=postgres mysql"`
	DSN         string        `mapstructure:"dsn"`
	URL         string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// CollectorConfig configures how historical logs are discovered and read.
type CollectorConfig struct {
	LogDir      string `mapstructure:"log_dir" validate:"required"`
	Pattern     string `mapstructure:"pattern" validate:"required"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1,lte=64"`
}

// SuppressionConfig configures the suppressor's default rules.
type SuppressionConfig struct {
	OfficeHoursStart   int                       `mapstructure:"office_hours_start" validate:"gte=0,lte=23"`
	OfficeHoursEnd     int                       `mapstructure:"office_hours_end" validate:"gte=1,lte=24"`
	QuickResolve       time.Duration             `mapstructure:"quick_resolve"`
	DuplicateWindow    time.Duration             `mapstructure:"duplicate_window"`
	MinErrorCount      int                       `mapstructure:"min_error_count" validate:"gte=0"`
	TestMarkers        []string                  `mapstructure:"test_markers"`
	CacheSize          int                       `mapstructure:"cache_size" validate:"gte=1"`
	DisabledRules      []string                  `mapstructure:"disabled_rules"`
	MaintenanceWindows []MaintenanceWindowConfig `mapstructure:"maintenance_windows" validate:"dive"`
}

// MaintenanceWindowConfig is one configured maintenance window.
// Start and End are RFC3339 timestamps; Service "*" matches every service.
type MaintenanceWindowConfig struct {
	Service string `mapstructure:"service" validate:"required"`
	Start   string `mapstructure:"start" validate:"required"`
	End     string `mapstructure:"end" validate:"required"`
	Reason  string `mapstructure:"reason"`
}

// Range parses the window bounds.
func (m MaintenanceWindowConfig) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, m.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid maintenance window start %q: %w", m.Start, err)
	}
	end, err := time.Parse(time.RFC3339, m.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid maintenance window end %q: %w", m.End, err)
	}
	return start, end, nil
}

// ForwardConfig configures the handoff of allowed alerts to the routing layer.
type ForwardConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

// WebhookConfig configures the HTTP sink.
type WebhookConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retry    RetryConfig   `mapstructure:"retry"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// ReportConfig contains configurations for report generation.
type ReportConfig struct {
	OutputDir        string   `mapstructure:"output_dir"`
	Formats          []string `mapstructure:"formats" validate:"dive,oneof=excel html"`
	FilenameTemplate string   `mapstructure:"filename_template"`
	HTMLTemplate     string   `mapstructure:"html_template"`
	Timezone         string   `mapstructure:"timezone"`
}

// Location returns the configured report timezone, falling back to local time.
func (r ReportConfig) Location() *time.Location {
	if r.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}
