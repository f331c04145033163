// Package detector implements the in-process real-time anomaly detector.
//
// A Detector keeps a five minute sliding window of request outcomes, a rolling
// log of authentication failures and a short traffic history. Every recorded
// request and every periodic check evaluates a fixed list of signals; each
// signal owns one fire/resolve state machine keyed by its alert name, and
// every transition is appended to the service's event log.
package detector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
	"alert-pipeline/internal/probe"
)

// Options configures a Detector. Only ServiceName and LogDir are required.
type Options struct {
	ServiceName   string
	LogDir        string
	Thresholds    Thresholds
	CheckInterval time.Duration

	Clock      clock.Clock
	Process    ProcessSampler
	Lag        LagSource
	Probe      probe.Probe
	Registerer prometheus.Registerer
}

// OptionsFromConfig builds Options from the detector section, applying the
// thresholds file when one is configured.
func OptionsFromConfig(cfg *config.DetectorConfig, logger zerolog.Logger) (Options, error) {
	opts := Options{
		ServiceName:   cfg.ServiceName,
		LogDir:        cfg.LogDir,
		Thresholds:    ThresholdsFromConfig(cfg.Thresholds),
		CheckInterval: cfg.CheckInterval,
	}

	if cfg.ThresholdsFile != "" {
		t, found, err := LoadThresholds(cfg.ThresholdsFile, cfg.ServiceName, opts.Thresholds)
		if err != nil {
			return opts, err
		}
		if found {
			opts.Thresholds = t
			logger.Info().
				Str("file", cfg.ThresholdsFile).
				Int("error_burst_count", t.ErrorBurstCount).
				Float64("availability_error_rate", t.AvailabilityErrorRate).
				Msg("applied tuned thresholds")
		} else {
			logger.Warn().
				Str("file", cfg.ThresholdsFile).
				Str("service", cfg.ServiceName).
				Msg("no tuned thresholds for service, using configured values")
		}
	}

	return opts, nil
}

// Stats is a read-only snapshot of detector state.
type Stats struct {
	ActiveAlerts   int `json:"active_alert_count"`
	RecentRequests int `json:"recent_request_count"`
	RecentErrors   int `json:"recent_error_count"`
}

// Detector evaluates anomaly signals for one service. All state is guarded by
// a single mutex; event log appends happen while it is held so events are
// written in the order checks run.
type Detector struct {
	service       string
	thresholds    Thresholds
	checkInterval time.Duration
	clock         clock.Clock
	process       ProcessSampler
	lag           LagSource
	drift         *DriftSampler
	probe         probe.Probe
	log           *EventLog
	metrics       *Metrics
	signals       []signal
	logger        zerolog.Logger

	mu           sync.Mutex
	requests     requestWindow
	authFailures []authFailure
	traffic      trafficHistory
	active       map[string]*model.ActiveAlert
}

// New creates a Detector.
func New(opts Options, logger zerolog.Logger) (*Detector, error) {
	if opts.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}
	if opts.LogDir == "" {
		return nil, fmt.Errorf("log directory is required")
	}

	eventLog, err := NewEventLog(opts.LogDir, opts.ServiceName)
	if err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	thresholds := opts.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	interval := opts.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	d := &Detector{
		service:       opts.ServiceName,
		thresholds:    thresholds,
		checkInterval: interval,
		clock:         clk,
		process:       opts.Process,
		lag:           opts.Lag,
		probe:         opts.Probe,
		log:           eventLog,
		metrics:       NewMetrics(opts.Registerer),
		signals:       defaultSignals(),
		active:        make(map[string]*model.ActiveAlert),
		logger: logger.With().
			Str("component", "detector").
			Str("service", opts.ServiceName).
			Logger(),
	}

	if d.process == nil {
		d.process = NewRuntimeSampler(clk, time.Second)
	}
	if d.lag == nil {
		d.drift = NewDriftSampler(clk, 500*time.Millisecond)
		d.lag = d.drift
	}

	return d, nil
}

// LogPath returns the event log file this detector appends to.
func (d *Detector) LogPath() string {
	return d.log.Path()
}

// Metrics returns the detector's prometheus collectors.
func (d *Detector) Metrics() *Metrics {
	return d.metrics
}

// RecordRequest adds a request outcome to the window and evaluates all signals.
func (d *Detector) RecordRequest(duration time.Duration, isError bool, errorType string) {
	d.mu.Lock()
	now := d.clock.Now()
	d.requests.add(requestSample{at: now, duration: duration, isError: isError, errorType: errorType})
	d.requests.prune(now)
	d.mu.Unlock()

	outcome := "success"
	if isError {
		outcome = "error"
	}
	d.metrics.Requests.WithLabelValues(outcome).Inc()

	d.evaluate(false)
}

// RecordAuthFailure adds an authentication failure to the rolling auth log.
// It does not trigger an evaluation.
func (d *Detector) RecordAuthFailure(failureType string) {
	d.mu.Lock()
	d.authFailures = append(d.authFailures, authFailure{at: d.clock.Now(), failureType: failureType})
	d.mu.Unlock()

	d.metrics.AuthFailures.Inc()
}

// Check runs one evaluation pass and records a traffic sample. It is what the
// periodic tick runs, so signals evolve without request traffic.
func (d *Detector) Check() {
	d.evaluate(true)
}

// Run calls Check every check interval until ctx is done.
func (d *Detector) Run(ctx context.Context) {
	if d.drift != nil {
		go d.drift.Run(ctx)
	}

	ticker := d.clock.Ticker(d.checkInterval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.checkInterval).Msg("detector started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("detector stopped")
			return
		case <-ticker.C:
			d.Check()
		}
	}
}

// Stats returns counts without pruning or evaluating anything.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		ActiveAlerts:   len(d.active),
		RecentRequests: d.requests.len(),
		RecentErrors:   d.requests.errors(),
	}
}

// ActiveAlerts returns a copy of the active alerts ordered by fire time.
func (d *Detector) ActiveAlerts() []model.ActiveAlert {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.ActiveAlert, 0, len(d.active))
	for _, a := range d.active {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].AlertName < out[j].AlertName
		}
		return out[i].FiredAt.Before(out[j].FiredAt)
	})
	return out
}

// evaluate gathers external readings without holding the lock, then runs
// every signal against one observation.
func (d *Detector) evaluate(sampleTraffic bool) {
	process := d.process.Sample()
	lag, lagOK := d.lag.Lag()

	var probed, connected bool
	if d.probe != nil {
		probed = true
		connected = d.probe.Connected(context.Background())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	d.requests.prune(now)
	d.pruneAuthFailures(now)

	lastMinute := d.requests.countSince(now.Add(-trafficRateWindow))
	if sampleTraffic {
		d.traffic.add(now, lastMinute)
	}

	o := &observation{
		now:           now,
		thresholds:    d.thresholds,
		requests:      d.requests.len(),
		errors:        d.requests.errors(),
		burstErrors:   d.requests.errorsSince(now.Add(-d.thresholds.ErrorBurstWindow)),
		lastSuccesses: d.requests.lastSuccesses(latencySampleCount),
		avgMillis:     d.requests.averageMillis(),
		process:       process,
		lagMs:         float64(lag) / float64(time.Millisecond),
		lagOK:         lagOK,
		trafficRate:   rate(lastMinute),
		authFailures:  len(d.authFailures),
		probed:        probed,
		connected:     connected,
	}
	if d.traffic.baselineSet {
		o.baseline = d.traffic.baseline
	}

	for _, s := range d.signals {
		d.apply(s, o)
	}
}

// apply runs one signal and performs its transition. A panicking signal is
// logged and does not stop the remaining signals.
func (d *Detector) apply(s signal, o *observation) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("alert_name", s.name).
				Interface("panic", r).
				Msg("signal check failed")
		}
	}()

	v := s.evaluate(o)
	active, isActive := d.active[s.name]

	switch {
	case v.fire && !isActive:
		d.fire(s, v.severity, o)
	case v.resolve && isActive:
		d.resolve(active, o)
	}
}

func (d *Detector) fire(s signal, severity model.Severity, o *observation) {
	d.active[s.name] = &model.ActiveAlert{
		AlertName: s.name,
		AlertType: s.alertType,
		FiredAt:   o.now,
		Severity:  severity,
	}

	event := d.newEvent(s.name, s.alertType, model.AlertStateFired, severity, o)
	d.write(event)

	d.metrics.AlertsFired.WithLabelValues(s.name, string(severity)).Inc()
	d.metrics.ActiveAlerts.Set(float64(len(d.active)))

	d.logger.Info().
		Str("alert_name", s.name).
		Str("alert_type", string(s.alertType)).
		Str("severity", string(severity)).
		Msg("alert fired")
}

func (d *Detector) resolve(active *model.ActiveAlert, o *observation) {
	delete(d.active, active.AlertName)

	duration := o.now.Sub(active.FiredAt).Milliseconds()
	event := d.newEvent(active.AlertName, active.AlertType, model.AlertStateResolved, active.Severity, o)
	event.AlertDuration = &duration
	d.write(event)

	d.metrics.AlertsResolved.WithLabelValues(active.AlertName).Inc()
	d.metrics.ActiveAlerts.Set(float64(len(d.active)))

	d.logger.Info().
		Str("alert_name", active.AlertName).
		Int64("duration_ms", duration).
		Msg("alert resolved")
}

func (d *Detector) newEvent(name string, alertType model.AlertType, state model.AlertState, severity model.Severity, o *observation) *model.AlertEvent {
	trafficRate := o.trafficRate
	event := &model.AlertEvent{
		Timestamp:           o.now.UTC(),
		ServiceName:         d.service,
		AlertName:           name,
		AlertType:           alertType,
		AlertState:          state,
		Severity:            severity,
		RequestCount:        o.requests,
		ErrorCount:          o.errors,
		AverageResponseTime: o.avgMillis,
		ProcessCPUUsage:     o.process.CPUPercent,
		ProcessMemoryUsage:  float64(o.process.HeapUsed),
		TrafficRate:         &trafficRate,
	}
	if o.lagOK {
		lag := o.lagMs
		event.EventLoopLag = &lag
	}
	return event
}

// write appends to the event log. Failures are logged and dropped.
func (d *Detector) write(event *model.AlertEvent) {
	if err := d.log.Append(event); err != nil {
		d.metrics.LogErrors.Inc()
		d.logger.Error().
			Err(err).
			Str("alert_name", event.AlertName).
			Str("alert_state", string(event.AlertState)).
			Msg("failed to write alert event")
	}
}

func (d *Detector) pruneAuthFailures(now time.Time) {
	cutoff := now.Add(-authFailureWindow)
	drop := 0
	for _, f := range d.authFailures {
		if f.at.After(cutoff) {
			break
		}
		drop++
	}
	if drop > 0 {
		d.authFailures = append(d.authFailures[:0:0], d.authFailures[drop:]...)
	}
}
