// Package model provides data models for the alert pipeline.
package model

import (
	"time"
)

// AlertType classifies the signal an alert was raised for.
type AlertType string

const (
	AlertTypeError        AlertType = "error"
	AlertTypeLatency      AlertType = "latency"
	AlertTypeAvailability AlertType = "availability"
	AlertTypeResource     AlertType = "resource"
	AlertTypeTraffic      AlertType = "traffic"
	AlertTypeSecurity     AlertType = "security"
	AlertTypePerformance  AlertType = "performance"
)

// Valid reports whether t is one of the known alert types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeError, AlertTypeLatency, AlertTypeAvailability, AlertTypeResource,
		AlertTypeTraffic, AlertTypeSecurity, AlertTypePerformance:
		return true
	}
	return false
}

// AlertState is the transition an AlertEvent records.
type AlertState string

const (
	AlertStateFired    AlertState = "fired"
	AlertStateResolved AlertState = "resolved"
)

// Valid reports whether s is fired or resolved.
func (s AlertState) Valid() bool {
	return s == AlertStateFired || s == AlertStateResolved
}

// Severity is the urgency tier assigned when an alert fires.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank orders severities from low (1) to critical (4); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AlertEvent is one line of the append-only per-service alert log.
// Events are immutable once written.
type AlertEvent struct {
	Timestamp   time.Time  `json:"timestamp"`
	ServiceName string     `json:"service_name"`
	AlertName   string     `json:"alert_name"`
	AlertType   AlertType  `json:"alert_type"`
	AlertState  AlertState `json:"alert_state"`
	// AlertDuration is the fire-to-resolve wall-clock time in milliseconds.
	// Only set on resolved events.
	AlertDuration *int64   `json:"alert_duration,omitempty"`
	Severity      Severity `json:"severity"`

	// Context snapshot captured when the transition happened.
	RequestCount        int      `json:"request_count"`
	ErrorCount          int      `json:"error_count"`
	AverageResponseTime float64  `json:"average_response_time"`
	ProcessCPUUsage     float64  `json:"process_cpu_usage"`
	ProcessMemoryUsage  float64  `json:"process_memory_usage"`
	EventLoopLag        *float64 `json:"event_loop_lag,omitempty"`
	TrafficRate         *float64 `json:"traffic_rate,omitempty"`

	// ServiceType is attached by the collector when merging logs; the detector never sets it.
	ServiceType string `json:"service_type,omitempty"`
}

// IsFired returns true for fire transitions.
func (e *AlertEvent) IsFired() bool {
	return e.AlertState == AlertStateFired
}

// IsResolved returns true for resolve transitions.
func (e *AlertEvent) IsResolved() bool {
	return e.AlertState == AlertStateResolved
}

// DurationMillis returns the alert duration and whether it was recorded.
func (e *AlertEvent) DurationMillis() (int64, bool) {
	if e.AlertDuration == nil {
		return 0, false
	}
	return *e.AlertDuration, true
}

// IsQuickResolve reports whether the event is a resolve that happened faster than limit.
// Resolved events without a recorded duration are never quick resolves.
func (e *AlertEvent) IsQuickResolve(limit time.Duration) bool {
	if !e.IsResolved() {
		return false
	}
	d, ok := e.DurationMillis()
	return ok && d < limit.Milliseconds()
}

// DedupKey identifies repeats of the same signal from the same service.
func (e *AlertEvent) DedupKey() string {
	return e.ServiceName + "|" + e.AlertName + "|" + string(e.AlertType)
}

// ActiveAlert is the in-memory record of a fired, not yet resolved signal.
type ActiveAlert struct {
	AlertName string    `json:"alert_name"`
	AlertType AlertType `json:"alert_type"`
	FiredAt   time.Time `json:"fired_at"`
	Severity  Severity  `json:"severity"`
}

// EventSummary provides aggregated counts over a set of events.
type EventSummary struct {
	TotalEvents   int `json:"total_events"`
	FiredCount    int `json:"fired_count"`
	ResolvedCount int `json:"resolved_count"`
	CriticalCount int `json:"critical_count"`
}

// NewEventSummary creates an EventSummary from a list of events.
func NewEventSummary(events []*AlertEvent) *EventSummary {
	summary := &EventSummary{}
	for _, e := range events {
		if e == nil {
			continue
		}
		summary.TotalEvents++
		switch e.AlertState {
		case AlertStateFired:
			summary.FiredCount++
		case AlertStateResolved:
			summary.ResolvedCount++
		}
		if e.Severity == SeverityCritical {
			summary.CriticalCount++
		}
	}
	return summary
}
