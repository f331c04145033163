// Package config provides configuration management for the alert pipeline.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified YAML file and environment variables.
// Environment variables take precedence over file values.
// Environment variable format: ALERTPIPE_<SECTION>_<KEY> (e.g., ALERTPIPE_DETECTOR_SERVICE_NAME)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variable binding
	v.SetEnvPrefix("ALERTPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Detector defaults
	v.SetDefault("detector.service_name", "")
	v.SetDefault("detector.log_dir", "./alerts")
	v.SetDefault("detector.check_interval", 30*time.Second)
	v.SetDefault("detector.thresholds.error_burst_count", 5)
	v.SetDefault("detector.thresholds.error_burst_window", 60*time.Second)
	v.SetDefault("detector.thresholds.latency_threshold", 3*time.Second)
	v.SetDefault("detector.thresholds.availability_error_rate", 0.5)

	// Probe defaults
	v.SetDefault("probe.kind", "none")
	v.SetDefault("probe.timeout", 2*time.Second)
	v.SetDefault("probe.min_interval", 10*time.Second)

	// Collector defaults
	v.SetDefault("collector.log_dir", "./alerts")
	v.SetDefault("collector.pattern", "*.ndjson")
	v.SetDefault("collector.concurrency", 4)

	// Suppression defaults
	v.SetDefault("suppression.office_hours_start", 9)
	v.SetDefault("suppression.office_hours_end", 17)
	v.SetDefault("suppression.quick_resolve", 30*time.Second)
	v.SetDefault("suppression.duplicate_window", 5*time.Minute)
	v.SetDefault("suppression.min_error_count", 3)
	v.SetDefault("suppression.test_markers", []string{"test", "dev", "staging"})
	v.SetDefault("suppression.cache_size", 4096)

	// Forward defaults
	v.SetDefault("forward.webhook.timeout", 10*time.Second)
	v.SetDefault("forward.webhook.retry.max_retries", 3)
	v.SetDefault("forward.webhook.retry.base_delay", 1*time.Second)
	v.SetDefault("forward.nats.subject", "alerts")

	// Report defaults
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.formats", []string{"excel", "html"})
	v.SetDefault("report.filename_template", "alert_report_{{.Date}}")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
