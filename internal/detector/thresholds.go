package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

// Thresholds are the tunable detector limits. Resource, traffic and security
// signals use fixed limits and are not part of this struct.
type Thresholds struct {
	ErrorBurstCount       int
	ErrorBurstWindow      time.Duration
	LatencyThreshold      time.Duration
	AvailabilityErrorRate float64
}

// DefaultThresholds returns the static detector defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrorBurstCount:       5,
		ErrorBurstWindow:      60 * time.Second,
		LatencyThreshold:      3 * time.Second,
		AvailabilityErrorRate: 0.5,
	}
}

// ThresholdsFromConfig converts the configured thresholds, keeping defaults for zero values.
func ThresholdsFromConfig(cfg config.DetectorThresholds) Thresholds {
	t := DefaultThresholds()
	if cfg.ErrorBurstCount > 0 {
		t.ErrorBurstCount = cfg.ErrorBurstCount
	}
	if cfg.ErrorBurstWindow > 0 {
		t.ErrorBurstWindow = cfg.ErrorBurstWindow
	}
	if cfg.LatencyThreshold > 0 {
		t.LatencyThreshold = cfg.LatencyThreshold
	}
	if cfg.AvailabilityErrorRate > 0 {
		t.AvailabilityErrorRate = cfg.AvailabilityErrorRate
	}
	return t
}

// Apply overlays an exported service entry onto t.
func (t Thresholds) Apply(st model.ServiceThresholds) Thresholds {
	if st.ErrorBurstCount > 0 {
		t.ErrorBurstCount = st.ErrorBurstCount
	}
	if st.AvailabilityErrorRate > 0 {
		t.AvailabilityErrorRate = st.AvailabilityErrorRate
	}
	if st.ErrorBurstWindowMs > 0 {
		t.ErrorBurstWindow = time.Duration(st.ErrorBurstWindowMs) * time.Millisecond
	}
	if st.LatencyThresholdMs > 0 {
		t.LatencyThreshold = time.Duration(st.LatencyThresholdMs) * time.Millisecond
	}
	return t
}

// LoadThresholdConfig reads a threshold export written by the tuner.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func LoadThresholdConfig(path string) (*model.ThresholdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var cfg model.ThresholdConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadThresholds returns base overlaid with the exported entry for service.
// The second result is false when the file has no entry for service.
func LoadThresholds(path, service string, base Thresholds) (Thresholds, bool, error) {
	cfg, err := LoadThresholdConfig(path)
	if err != nil {
		return base, false, err
	}

	st, ok := cfg.Find(service)
	if !ok {
		return base, false, nil
	}
	return base.Apply(st), true, nil
}
