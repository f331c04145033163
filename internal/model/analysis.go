package model

import "time"

// TimeRange is the span covered by a set of events.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours returns the length of the range in hours.
func (r TimeRange) Hours() float64 {
	return r.End.Sub(r.Start).Hours()
}

// ServiceBaseline is a per-service summary recomputed on every analysis run.
type ServiceBaseline struct {
	ServiceName       string  `json:"service_name"`
	TotalAlerts       int     `json:"total_alerts"`
	AvgErrorCount     float64 `json:"avg_error_count"`
	AvgResponseTime   float64 `json:"avg_response_time"`
	AvgAlertDuration  float64 `json:"avg_alert_duration"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	AlertRatePerHour  float64 `json:"alert_rate_per_hour"`
	AvgCPUUsage       float64 `json:"avg_cpu_usage"`
	AvgMemoryUsage    float64 `json:"avg_memory_usage"`
}

// FalsePositiveAnalysis is the global false-positive estimate.
type FalsePositiveAnalysis struct {
	TotalResolved      int     `json:"total_resolved"`
	QuickResolves      int     `json:"quick_resolves"`
	EstimatedFPRate    float64 `json:"estimated_fp_rate"`
	RepetitivePatterns int     `json:"repetitive_patterns"`
}

// TemporalPatterns buckets alert activity by local hour of day and day of week.
type TemporalPatterns struct {
	HourlyDistribution [24]int `json:"hourly_distribution"`
	DailyDistribution  [7]int  `json:"daily_distribution"`
	PeakHours          []int   `json:"peak_hours"`
	PeakDays           []int   `json:"peak_days"`
}

// AnalysisReport bundles every output of one historical analysis run.
type AnalysisReport struct {
	GeneratedAt     time.Time                   `json:"generated_at"`
	TotalEvents     int                         `json:"total_events"`
	TimeRange       *TimeRange                  `json:"time_range,omitempty"`
	Baselines       map[string]*ServiceBaseline `json:"baselines"`
	FalsePositives  *FalsePositiveAnalysis      `json:"false_positives"`
	Temporal        *TemporalPatterns           `json:"temporal_patterns"`
	Recommendations []string                    `json:"recommendations"`
}
