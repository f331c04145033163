// Package tuner computes statistically justified threshold recommendations
// per service and alert type from historical alert events.
package tuner

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"alert-pipeline/internal/analyzer"
	"alert-pipeline/internal/detector"
	"alert-pipeline/internal/model"
	"alert-pipeline/internal/stats"
)

const (
	minSamples = 5

	minErrorThreshold   = 3
	minAvailabilityRate = 0.3
	maxAvailabilityRate = 0.8

	// Fraction of current false positives the recommended thresholds aim to remove.
	targetReduction = 0.4
)

// Export formats accepted by WriteConfig.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Tuner derives recommendations from a sorted event sequence. Current
// thresholds are the detector's static configuration.
type Tuner struct {
	events    []*model.AlertEvent
	byService map[string][]*model.AlertEvent
	current   detector.Thresholds
	clock     clock.Clock
	logger    zerolog.Logger
}

// New creates a Tuner.
func New(events []*model.AlertEvent, current detector.Thresholds, clk clock.Clock, logger zerolog.Logger) *Tuner {
	if clk == nil {
		clk = clock.New()
	}
	return &Tuner{
		events:    events,
		byService: analyzer.ByService(events),
		current:   current,
		clock:     clk,
		logger:    logger.With().Str("component", "tuner").Logger(),
	}
}

func (t *Tuner) serviceEvents(service string, typ model.AlertType) []*model.AlertEvent {
	out := make([]*model.AlertEvent, 0)
	for _, e := range t.byService[service] {
		if e.AlertType == typ {
			out = append(out, e)
		}
	}
	return out
}

func insufficient(service string, typ model.AlertType, current float64, samples int) *model.AdaptiveThreshold {
	return &model.AdaptiveThreshold{
		ServiceName:          service,
		AlertType:            typ,
		CurrentThreshold:     current,
		RecommendedThreshold: current,
		AdjustmentPercentage: 0,
		Confidence:           model.ConfidenceLow,
		Rationale: fmt.Sprintf("Insufficient data: %d %s events (need at least %d); keeping the current threshold",
			samples, typ, minSamples),
		BasedOnSamples: 0,
	}
}

// ErrorThreshold recommends an error burst count for service.
func (t *Tuner) ErrorThreshold(service string) *model.AdaptiveThreshold {
	current := float64(t.current.ErrorBurstCount)
	events := t.serviceEvents(service, model.AlertTypeError)
	if len(events) < minSamples {
		return insufficient(service, model.AlertTypeError, current, len(events))
	}

	counts := make([]float64, len(events))
	resolved, quick := 0, 0
	for i, e := range events {
		counts[i] = float64(e.ErrorCount)
		if e.IsResolved() {
			resolved++
			if e.IsQuickResolve(analyzer.QuickResolveLimit) {
				quick++
			}
		}
	}
	fpRate := 0.0
	if resolved > 0 {
		fpRate = float64(quick) / float64(resolved)
	}

	mean := stats.Mean(counts)
	stdDev := stats.StdDev(counts)
	p75 := stats.Percentile(counts, 75)
	p90 := stats.Percentile(counts, 90)
	k := sensitivity(fpRate)

	recommended := math.Max(minErrorThreshold, math.Ceil(math.Max(mean+k*stdDev, p75)))

	return &model.AdaptiveThreshold{
		ServiceName:          service,
		AlertType:            model.AlertTypeError,
		CurrentThreshold:     current,
		RecommendedThreshold: recommended,
		AdjustmentPercentage: adjustment(current, recommended),
		Confidence:           confidence(len(events), 20, 10),
		Rationale: fmt.Sprintf("mean=%.2f stddev=%.2f p75=%.0f p90=%.0f fp_rate=%.2f; threshold set to max(mean+%.1f*stddev, p75)",
			mean, stdDev, p75, p90, fpRate, k),
		BasedOnSamples: len(events),
	}
}

// sensitivity widens the threshold for services that already produce many false positives.
func sensitivity(fpRate float64) float64 {
	switch {
	case fpRate > 0.4:
		return 2.5
	case fpRate > 0.2:
		return 2.0
	default:
		return 1.5
	}
}

// AvailabilityThreshold recommends an availability error rate for service.
func (t *Tuner) AvailabilityThreshold(service string) *model.AdaptiveThreshold {
	current := t.current.AvailabilityErrorRate
	events := t.serviceEvents(service, model.AlertTypeAvailability)
	if len(events) < minSamples {
		return insufficient(service, model.AlertTypeAvailability, current, len(events))
	}

	rates := make([]float64, len(events))
	for i, e := range events {
		if e.RequestCount > 0 {
			rates[i] = float64(e.ErrorCount) / float64(e.RequestCount)
		}
	}

	p90 := stats.Percentile(rates, 90)
	recommended := stats.Round(math.Min(maxAvailabilityRate, math.Max(minAvailabilityRate, p90)), 2)

	return &model.AdaptiveThreshold{
		ServiceName:          service,
		AlertType:            model.AlertTypeAvailability,
		CurrentThreshold:     current,
		RecommendedThreshold: recommended,
		AdjustmentPercentage: adjustment(current, recommended),
		Confidence:           confidence(len(events), 15, 8),
		Rationale: fmt.Sprintf("p90 error rate=%.3f clamped to [%.1f, %.1f]",
			p90, minAvailabilityRate, maxAvailabilityRate),
		BasedOnSamples: len(events),
	}
}

func adjustment(current, recommended float64) float64 {
	if current == 0 {
		return 0
	}
	return stats.Round((recommended-current)/current*100, 2)
}

func confidence(samples, high, medium int) model.Confidence {
	switch {
	case samples > high:
		return model.ConfidenceHigh
	case samples > medium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// Services returns the services present in the input, sorted.
func (t *Tuner) Services() []string {
	return analyzer.ServiceNames(t.byService)
}

// Thresholds returns the error then availability recommendation for every service.
func (t *Tuner) Thresholds() []*model.AdaptiveThreshold {
	out := make([]*model.AdaptiveThreshold, 0, 2*len(t.byService))
	for _, service := range t.Services() {
		out = append(out, t.ErrorThreshold(service), t.AvailabilityThreshold(service))
	}

	t.logger.Info().
		Int("services", len(t.byService)).
		Int("recommendations", len(out)).
		Msg("threshold tuning completed")

	return out
}

// ExportConfig builds the detector configuration for every service. Burst
// window and latency threshold are carried over from the current thresholds.
func (t *Tuner) ExportConfig() *model.ThresholdConfig {
	cfg := &model.ThresholdConfig{
		GeneratedAt: t.clock.Now().UTC(),
		Services:    make([]model.ServiceThresholds, 0, len(t.byService)),
	}
	for _, service := range t.Services() {
		errTh := t.ErrorThreshold(service)
		availTh := t.AvailabilityThreshold(service)
		cfg.Services = append(cfg.Services, model.ServiceThresholds{
			ServiceName:           service,
			ErrorBurstCount:       int(errTh.RecommendedThreshold),
			AvailabilityErrorRate: availTh.RecommendedThreshold,
			ErrorBurstWindowMs:    t.current.ErrorBurstWindow.Milliseconds(),
			LatencyThresholdMs:    t.current.LatencyThreshold.Milliseconds(),
		})
	}
	return cfg
}

// ExpectedImpact estimates how many alerts the recommendations would save.
// fp is the analyzer's false positive analysis of the same events; when nil
// the quick-resolve rate is computed from the events directly.
func (t *Tuner) ExpectedImpact(fp *model.FalsePositiveAnalysis) *model.ExpectedImpact {
	rate := 0.0
	if fp != nil {
		rate = fp.EstimatedFPRate
	} else {
		rate = quickResolveRate(t.events)
	}

	reduction := rate * targetReduction
	return &model.ExpectedImpact{
		CurrentFPRate:        rate,
		EstimatedReduction:   reduction,
		TotalAlerts:          len(t.events),
		EstimatedAlertsSaved: int(math.Floor(float64(len(t.events)) * reduction)),
	}
}

// quickResolveRate is quick resolves over all resolves, 0 without resolves.
func quickResolveRate(events []*model.AlertEvent) float64 {
	resolved, quick := 0, 0
	for _, e := range events {
		if !e.IsResolved() {
			continue
		}
		resolved++
		if e.IsQuickResolve(analyzer.QuickResolveLimit) {
			quick++
		}
	}
	if resolved == 0 {
		return 0
	}
	return float64(quick) / float64(resolved)
}

// WriteConfig encodes cfg as json or yaml.
func WriteConfig(w io.Writer, cfg *model.ThresholdConfig, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode threshold config as json: %w", err)
		}
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode threshold config as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode threshold config as yaml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
	return nil
}
