package model

import "time"

// Confidence is a coarse label on a statistical recommendation, driven by sample count.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// AdaptiveThreshold is a recommended threshold for one (service, alert type) pair.
type AdaptiveThreshold struct {
	ServiceName          string     `json:"service_name"`
	AlertType            AlertType  `json:"alert_type"`
	CurrentThreshold     float64    `json:"current_threshold"`
	RecommendedThreshold float64    `json:"recommended_threshold"`
	AdjustmentPercentage float64    `json:"adjustment_percentage"`
	Confidence           Confidence `json:"confidence"`
	Rationale            string     `json:"rationale"`
	BasedOnSamples       int        `json:"based_on_samples"`
}

// ServiceThresholds is the detector configuration exported for one service.
// Error and availability thresholds are tuned; burst window and latency threshold
// are carried over from the static defaults.
type ServiceThresholds struct {
	ServiceName           string  `json:"service_name" yaml:"service_name"`
	ErrorBurstCount       int     `json:"error_burst_count" yaml:"error_burst_count"`
	AvailabilityErrorRate float64 `json:"availability_error_rate" yaml:"availability_error_rate"`
	ErrorBurstWindowMs    int64   `json:"error_burst_window_ms" yaml:"error_burst_window_ms"`
	LatencyThresholdMs    int64   `json:"latency_threshold_ms" yaml:"latency_threshold_ms"`
}

// ThresholdConfig is the exported configuration document consumed by detectors.
type ThresholdConfig struct {
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Services    []ServiceThresholds `json:"services" yaml:"services"`
}

// Find returns the thresholds for service, if present.
func (c *ThresholdConfig) Find(service string) (ServiceThresholds, bool) {
	for _, s := range c.Services {
		if s.ServiceName == service {
			return s, true
		}
	}
	return ServiceThresholds{}, false
}

// ExpectedImpact estimates the effect of applying the recommended thresholds.
type ExpectedImpact struct {
	CurrentFPRate        float64 `json:"current_fp_rate"`
	EstimatedReduction   float64 `json:"estimated_reduction"`
	TotalAlerts          int     `json:"total_alerts"`
	EstimatedAlertsSaved int     `json:"estimated_alerts_saved"`
}
