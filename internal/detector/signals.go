package detector

import (
	"time"

	"alert-pipeline/internal/model"
)

// Signal names. Each names exactly one fire/resolve state machine.
const (
	SignalErrorBurst    = "error_burst"
	SignalHighLatency   = "high_latency"
	SignalAvailability  = "availability_issue"
	SignalHighMemory    = "high_memory_usage"
	SignalHighCPU       = "high_cpu_usage"
	SignalEventLoopLag  = "event_loop_lag"
	SignalTrafficSpike  = "traffic_spike"
	SignalTrafficDrop   = "traffic_drop"
	SignalAuthFailures  = "auth_failure_spike"
	SignalDatabaseIssue = "database_connection_issue"
)

// Fixed limits for signals the tuner does not adapt.
const (
	latencySampleCount   = 3
	availabilityMinCount = 10
	memoryFirePercent    = 85.0
	memoryResolvePercent = 80.0
	cpuFirePercent       = 80.0
	cpuResolvePercent    = 70.0
	lagFireMs            = 100.0
	lagResolveMs         = 80.0
	spikeFireFactor      = 3.0
	spikeResolveFactor   = 2.5
	dropFireFactor       = 0.3
	dropResolveFactor    = 0.5
	authFireCount        = 10
	authResolveCount     = 7
)

// observation is everything one evaluation pass looks at. It is built once
// per pass so every signal sees the same state.
type observation struct {
	now        time.Time
	thresholds Thresholds

	requests      int
	errors        int
	burstErrors   int
	lastSuccesses []requestSample
	avgMillis     float64

	process ProcessSample
	lagMs   float64
	lagOK   bool

	trafficRate float64
	baseline    float64

	authFailures int

	probed    bool
	connected bool
}

func (o *observation) errorRate() float64 {
	if o.requests == 0 {
		return 0
	}
	return float64(o.errors) / float64(o.requests)
}

// verdict is a signal's decision for one pass. A verdict with neither flag set
// leaves the alert as it is.
type verdict struct {
	fire     bool
	resolve  bool
	severity model.Severity
}

func fire(sev model.Severity) verdict { return verdict{fire: true, severity: sev} }

var (
	resolve = verdict{resolve: true}
	hold    = verdict{}
)

type signal struct {
	name      string
	alertType model.AlertType
	evaluate  func(o *observation) verdict
}

// defaultSignals returns the evaluators in the order they run on every pass.
func defaultSignals() []signal {
	return []signal{
		{SignalErrorBurst, model.AlertTypeError, evalErrorBurst},
		{SignalHighLatency, model.AlertTypeLatency, evalHighLatency},
		{SignalAvailability, model.AlertTypeAvailability, evalAvailability},
		{SignalHighMemory, model.AlertTypeResource, evalMemory},
		{SignalHighCPU, model.AlertTypeResource, evalCPU},
		{SignalEventLoopLag, model.AlertTypePerformance, evalEventLoopLag},
		{SignalTrafficSpike, model.AlertTypeTraffic, evalTrafficSpike},
		{SignalTrafficDrop, model.AlertTypeTraffic, evalTrafficDrop},
		{SignalAuthFailures, model.AlertTypeSecurity, evalAuthFailures},
		{SignalDatabaseIssue, model.AlertTypeResource, evalDatabase},
	}
}

func evalErrorBurst(o *observation) verdict {
	n := o.burstErrors
	if n < o.thresholds.ErrorBurstCount {
		return resolve
	}
	switch {
	case n >= 10:
		return fire(model.SeverityHigh)
	case n >= 7:
		return fire(model.SeverityMedium)
	default:
		return fire(model.SeverityLow)
	}
}

func evalHighLatency(o *observation) verdict {
	if len(o.lastSuccesses) < latencySampleCount {
		return hold
	}

	var total time.Duration
	for _, s := range o.lastSuccesses {
		if s.duration <= o.thresholds.LatencyThreshold {
			return resolve
		}
		total += s.duration
	}

	avg := float64(total.Milliseconds()) / float64(len(o.lastSuccesses))
	switch {
	case avg > 5000:
		return fire(model.SeverityHigh)
	case avg > 4000:
		return fire(model.SeverityMedium)
	default:
		return fire(model.SeverityLow)
	}
}

func evalAvailability(o *observation) verdict {
	if o.requests < availabilityMinCount {
		return hold
	}

	r := o.errorRate()
	if r < o.thresholds.AvailabilityErrorRate {
		return resolve
	}
	switch {
	case r >= 0.8:
		return fire(model.SeverityHigh)
	case r >= 0.65:
		return fire(model.SeverityMedium)
	default:
		return fire(model.SeverityLow)
	}
}

func evalMemory(o *observation) verdict {
	pct := o.process.MemoryPercent()
	switch {
	case pct < 0:
		return hold
	case pct >= 95:
		return fire(model.SeverityCritical)
	case pct >= 90:
		return fire(model.SeverityHigh)
	case pct >= memoryFirePercent:
		return fire(model.SeverityMedium)
	case pct < memoryResolvePercent:
		return resolve
	}
	return hold
}

func evalCPU(o *observation) verdict {
	pct := o.process.CPUPercent
	switch {
	case pct < 0:
		return hold
	case pct >= 95:
		return fire(model.SeverityCritical)
	case pct >= 90:
		return fire(model.SeverityHigh)
	case pct >= cpuFirePercent:
		return fire(model.SeverityMedium)
	case pct < cpuResolvePercent:
		return resolve
	}
	return hold
}

func evalEventLoopLag(o *observation) verdict {
	if !o.lagOK {
		return hold
	}
	ms := o.lagMs
	switch {
	case ms >= 500:
		return fire(model.SeverityCritical)
	case ms >= 300:
		return fire(model.SeverityHigh)
	case ms >= 200:
		return fire(model.SeverityMedium)
	case ms >= lagFireMs:
		return fire(model.SeverityLow)
	case ms < lagResolveMs:
		return resolve
	}
	return hold
}

func evalTrafficSpike(o *observation) verdict {
	if o.baseline <= 0 {
		return hold
	}
	factor := o.trafficRate / o.baseline
	switch {
	case factor >= 5:
		return fire(model.SeverityHigh)
	case factor >= 4:
		return fire(model.SeverityMedium)
	case factor >= spikeFireFactor:
		return fire(model.SeverityLow)
	case factor < spikeResolveFactor:
		return resolve
	}
	return hold
}

func evalTrafficDrop(o *observation) verdict {
	if o.baseline <= 0 {
		return hold
	}
	factor := o.trafficRate / o.baseline
	if factor > dropResolveFactor {
		return resolve
	}
	if factor > dropFireFactor {
		return hold
	}

	drop := (1 - factor) * 100
	switch {
	case drop >= 90:
		return fire(model.SeverityCritical)
	case drop >= 80:
		return fire(model.SeverityHigh)
	case drop >= 70:
		return fire(model.SeverityMedium)
	default:
		return fire(model.SeverityLow)
	}
}

func evalAuthFailures(o *observation) verdict {
	n := o.authFailures
	switch {
	case n >= 50:
		return fire(model.SeverityCritical)
	case n >= 30:
		return fire(model.SeverityHigh)
	case n >= 20:
		return fire(model.SeverityMedium)
	case n >= authFireCount:
		return fire(model.SeverityLow)
	case n < authResolveCount:
		return resolve
	}
	return hold
}

func evalDatabase(o *observation) verdict {
	if !o.probed {
		return hold
	}
	if o.connected {
		return resolve
	}
	return fire(model.SeverityCritical)
}
