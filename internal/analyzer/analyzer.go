// Package analyzer turns a merged alert event sequence into per-service
// baselines and alert-quality signals.
package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"alert-pipeline/internal/model"
	"alert-pipeline/internal/stats"
)

const (
	// QuickResolveLimit is the fire-to-resolve time under which a resolve counts as a likely false positive.
	QuickResolveLimit = 30 * time.Second
	// RepetitiveGap bounds the pairwise scan for repeated alerts.
	RepetitiveGap = 5 * time.Minute
)

// Recommendation triggers.
const (
	globalFPRateLimit   = 0.3
	serviceFPRateLimit  = 0.4
	alertRateLimit      = 10.0
	repetitivePairLimit = 50
	peakHourFactor      = 1.5
	peakDayFactor       = 1.2
)

// NormalRecommendation is returned when no rule triggers.
const NormalRecommendation = "Alert patterns look normal; no threshold changes recommended"

// Analyzer computes statistics over a chronologically sorted event sequence.
// The input is treated as read-only.
type Analyzer struct {
	events []*model.AlertEvent
	loc    *time.Location
	clock  clock.Clock
	logger zerolog.Logger
}

// New creates an Analyzer. loc is the timezone for hour-of-day and day-of-week bucketing.
func New(events []*model.AlertEvent, loc *time.Location, clk clock.Clock, logger zerolog.Logger) *Analyzer {
	if loc == nil {
		loc = time.Local
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Analyzer{
		events: events,
		loc:    loc,
		clock:  clk,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// TimeRange returns the earliest and latest event timestamps, or nil when there are no events.
func (a *Analyzer) TimeRange() *model.TimeRange {
	return timeRange(a.events)
}

func timeRange(events []*model.AlertEvent) *model.TimeRange {
	if len(events) == 0 {
		return nil
	}
	r := &model.TimeRange{Start: events[0].Timestamp, End: events[0].Timestamp}
	for _, e := range events[1:] {
		if e.Timestamp.Before(r.Start) {
			r.Start = e.Timestamp
		}
		if e.Timestamp.After(r.End) {
			r.End = e.Timestamp
		}
	}
	return r
}

// ByService partitions events by service name, keeping input order within each service.
func ByService(events []*model.AlertEvent) map[string][]*model.AlertEvent {
	out := make(map[string][]*model.AlertEvent)
	for _, e := range events {
		out[e.ServiceName] = append(out[e.ServiceName], e)
	}
	return out
}

// ServiceNames returns the sorted keys of a partition.
func ServiceNames(partition map[string][]*model.AlertEvent) []string {
	names := make([]string, 0, len(partition))
	for name := range partition {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceBaselines computes one baseline per service.
func (a *Analyzer) ServiceBaselines() map[string]*model.ServiceBaseline {
	baselines := make(map[string]*model.ServiceBaseline)
	for name, events := range ByService(a.events) {
		baselines[name] = baseline(name, events)
	}
	return baselines
}

func baseline(name string, events []*model.AlertEvent) *model.ServiceBaseline {
	errorCounts := make([]float64, 0, len(events))
	responseTimes := make([]float64, 0, len(events))
	memory := make([]float64, 0, len(events))
	cpu := make([]float64, 0, len(events))
	durations := make([]float64, 0)
	resolved, quick := 0, 0

	for _, e := range events {
		errorCounts = append(errorCounts, float64(e.ErrorCount))
		responseTimes = append(responseTimes, e.AverageResponseTime)
		memory = append(memory, e.ProcessMemoryUsage)
		// Negative CPU marks an unknown reading.
		if e.ProcessCPUUsage >= 0 {
			cpu = append(cpu, e.ProcessCPUUsage)
		}

		if !e.IsResolved() {
			continue
		}
		resolved++
		if d, ok := e.DurationMillis(); ok {
			durations = append(durations, float64(d))
		}
		if e.IsQuickResolve(QuickResolveLimit) {
			quick++
		}
	}

	b := &model.ServiceBaseline{
		ServiceName:      name,
		TotalAlerts:      len(events),
		AvgErrorCount:    stats.Mean(errorCounts),
		AvgResponseTime:  stats.Mean(responseTimes),
		AvgAlertDuration: stats.Mean(durations),
		AvgCPUUsage:      stats.Mean(cpu),
		AvgMemoryUsage:   stats.Mean(memory),
	}
	if resolved > 0 {
		b.FalsePositiveRate = float64(quick) / float64(resolved)
	}
	if r := timeRange(events); r != nil && r.Hours() > 0 {
		b.AlertRatePerHour = float64(len(events)) / r.Hours()
	}
	return b
}

// DetectFalsePositives estimates the global false-positive rate from quick
// resolves and counts repeated (service, type, name) pairs less than five
// minutes apart.
func (a *Analyzer) DetectFalsePositives() *model.FalsePositiveAnalysis {
	fp := &model.FalsePositiveAnalysis{}
	for _, e := range a.events {
		if !e.IsResolved() {
			continue
		}
		fp.TotalResolved++
		if e.IsQuickResolve(QuickResolveLimit) {
			fp.QuickResolves++
		}
	}
	if fp.TotalResolved > 0 {
		fp.EstimatedFPRate = float64(fp.QuickResolves) / float64(fp.TotalResolved)
	}
	fp.RepetitivePatterns = repetitivePairs(a.events)
	return fp
}

// repetitivePairs counts every ordered pair i<j of matching events. The inner
// scan stops at the first event more than RepetitiveGap after events[i], so
// events must be sorted ascending.
func repetitivePairs(events []*model.AlertEvent) int {
	count := 0
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if events[j].Timestamp.Sub(events[i].Timestamp) > RepetitiveGap {
				break
			}
			if events[i].ServiceName == events[j].ServiceName &&
				events[i].AlertType == events[j].AlertType &&
				events[i].AlertName == events[j].AlertName {
				count++
			}
		}
	}
	return count
}

// TemporalPatterns buckets events by local hour and weekday (Sunday = 0).
func (a *Analyzer) TemporalPatterns() *model.TemporalPatterns {
	tp := &model.TemporalPatterns{
		PeakHours: make([]int, 0),
		PeakDays:  make([]int, 0),
	}
	for _, e := range a.events {
		local := e.Timestamp.In(a.loc)
		tp.HourlyDistribution[local.Hour()]++
		tp.DailyDistribution[int(local.Weekday())]++
	}

	hourly := make([]float64, len(tp.HourlyDistribution))
	for i, c := range tp.HourlyDistribution {
		hourly[i] = float64(c)
	}
	daily := make([]float64, len(tp.DailyDistribution))
	for i, c := range tp.DailyDistribution {
		daily[i] = float64(c)
	}

	hourMean, dayMean := stats.Mean(hourly), stats.Mean(daily)
	for h, c := range hourly {
		if c > peakHourFactor*hourMean {
			tp.PeakHours = append(tp.PeakHours, h)
		}
	}
	for d, c := range daily {
		if c > peakDayFactor*dayMean {
			tp.PeakDays = append(tp.PeakDays, d)
		}
	}
	return tp
}

// Recommendations derives textual recommendations from the analysis.
func (a *Analyzer) Recommendations() []string {
	return recommendations(a.ServiceBaselines(), a.DetectFalsePositives(), a.TemporalPatterns())
}

func recommendations(
	baselines map[string]*model.ServiceBaseline,
	fp *model.FalsePositiveAnalysis,
	tp *model.TemporalPatterns,
) []string {
	recs := make([]string, 0)

	if fp.EstimatedFPRate > globalFPRateLimit {
		recs = append(recs, fmt.Sprintf(
			"High false positive rate (%.1f%%): raise alert thresholds or add suppression rules",
			fp.EstimatedFPRate*100))
	}

	names := make([]string, 0, len(baselines))
	for name := range baselines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := baselines[name]
		if b.FalsePositiveRate > serviceFPRateLimit {
			recs = append(recs, fmt.Sprintf(
				"Service %s: %.1f%% of its alerts resolve within 30s; review its alert thresholds",
				name, b.FalsePositiveRate*100))
		}
		if b.AlertRatePerHour > alertRateLimit {
			recs = append(recs, fmt.Sprintf(
				"Service %s: %.1f alerts per hour; consider alert aggregation or higher thresholds",
				name, b.AlertRatePerHour))
		}
	}

	if fp.RepetitivePatterns > repetitivePairLimit {
		recs = append(recs, fmt.Sprintf(
			"%d repeated alert pairs within 5 minutes: enable duplicate suppression",
			fp.RepetitivePatterns))
	}

	if len(tp.PeakHours) > 0 {
		recs = append(recs, fmt.Sprintf(
			"Alert activity peaks at hours %v: consider time-based thresholds for those hours",
			tp.PeakHours))
	}

	if len(recs) == 0 {
		recs = append(recs, NormalRecommendation)
	}
	return recs
}

// Analyze runs every analysis and bundles the results.
func (a *Analyzer) Analyze() *model.AnalysisReport {
	baselines := a.ServiceBaselines()
	fp := a.DetectFalsePositives()
	tp := a.TemporalPatterns()

	report := &model.AnalysisReport{
		GeneratedAt:     a.clock.Now(),
		TotalEvents:     len(a.events),
		TimeRange:       a.TimeRange(),
		Baselines:       baselines,
		FalsePositives:  fp,
		Temporal:        tp,
		Recommendations: recommendations(baselines, fp, tp),
	}

	a.logger.Info().
		Int("events", report.TotalEvents).
		Int("services", len(baselines)).
		Float64("estimated_fp_rate", fp.EstimatedFPRate).
		Int("repetitive_patterns", fp.RepetitivePatterns).
		Msg("historical analysis completed")

	return report
}
