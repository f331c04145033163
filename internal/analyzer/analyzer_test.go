package analyzer

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-pipeline/internal/model"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // a Monday

func fired(service, name string, typ model.AlertType, at time.Time) *model.AlertEvent {
	return &model.AlertEvent{
		Timestamp:   at,
		ServiceName: service,
		AlertName:   name,
		AlertType:   typ,
		AlertState:  model.AlertStateFired,
		Severity:    model.SeverityMedium,
	}
}

func resolved(service, name string, typ model.AlertType, at time.Time, durationMs int64) *model.AlertEvent {
	e := fired(service, name, typ, at)
	e.AlertState = model.AlertStateResolved
	e.AlertDuration = &durationMs
	return e
}

func newAnalyzer(events []*model.AlertEvent) *Analyzer {
	return New(events, time.UTC, clock.NewMock(), zerolog.Nop())
}

func TestTimeRange(t *testing.T) {
	assert.Nil(t, newAnalyzer(nil).TimeRange())

	events := []*model.AlertEvent{
		fired("orders", "error_burst", model.AlertTypeError, t0),
		fired("orders", "error_burst", model.AlertTypeError, t0.Add(3*time.Hour)),
	}
	r := newAnalyzer(events).TimeRange()
	require.NotNil(t, r)
	assert.Equal(t, t0, r.Start)
	assert.Equal(t, t0.Add(3*time.Hour), r.End)
	assert.Equal(t, 3.0, r.Hours())
}

func TestDetectFalsePositives_FortyPercent(t *testing.T) {
	events := make([]*model.AlertEvent, 0, 100)
	for i := 0; i < 100; i++ {
		d := int64(60000)
		if i < 40 {
			d = 29999
		}
		// Spread far enough apart to stay out of the repetitive scan.
		events = append(events, resolved("orders", "error_burst", model.AlertTypeError, t0.Add(time.Duration(i)*10*time.Minute), d))
	}

	fp := newAnalyzer(events).DetectFalsePositives()
	assert.Equal(t, 100, fp.TotalResolved)
	assert.Equal(t, 40, fp.QuickResolves)
	assert.InDelta(t, 0.4, fp.EstimatedFPRate, 1e-12)
	assert.Equal(t, 0, fp.RepetitivePatterns)
}

func TestDetectFalsePositives_Empty(t *testing.T) {
	fp := newAnalyzer(nil).DetectFalsePositives()
	assert.Equal(t, 0.0, fp.EstimatedFPRate)
	assert.Equal(t, 0, fp.RepetitivePatterns)
}

func TestRepetitivePairs_CountsPairs(t *testing.T) {
	events := []*model.AlertEvent{
		fired("orders", "error_burst", model.AlertTypeError, t0),
		fired("orders", "error_burst", model.AlertTypeError, t0.Add(time.Minute)),
		fired("users", "error_burst", model.AlertTypeError, t0.Add(2*time.Minute)),
		fired("orders", "error_burst", model.AlertTypeError, t0.Add(5*time.Minute)),
		fired("orders", "error_burst", model.AlertTypeError, t0.Add(11*time.Minute)),
	}

	// (0,1), (0,3) at exactly five minutes, (1,3). Event 4 is more than five minutes from all.
	assert.Equal(t, 3, repetitivePairs(events))
}

func TestServiceBaselines(t *testing.T) {
	e1 := fired("orders", "error_burst", model.AlertTypeError, t0)
	e1.ErrorCount = 4
	e1.AverageResponseTime = 100
	e1.ProcessCPUUsage = 20
	e1.ProcessMemoryUsage = 1000
	e2 := resolved("orders", "error_burst", model.AlertTypeError, t0.Add(time.Hour), 10000)
	e2.ErrorCount = 6
	e2.AverageResponseTime = 300
	e2.ProcessCPUUsage = -1
	e2.ProcessMemoryUsage = 3000
	e3 := resolved("orders", "high_latency", model.AlertTypeLatency, t0.Add(2*time.Hour), 50000)
	e3.ErrorCount = 2
	e3.AverageResponseTime = 200
	e3.ProcessCPUUsage = 40
	e3.ProcessMemoryUsage = 2000
	single := fired("users", "auth_failure_spike", model.AlertTypeSecurity, t0)

	baselines := newAnalyzer([]*model.AlertEvent{e1, single, e2, e3}).ServiceBaselines()
	require.Len(t, baselines, 2)

	b := baselines["orders"]
	assert.Equal(t, "orders", b.ServiceName)
	assert.Equal(t, 3, b.TotalAlerts)
	assert.InDelta(t, 4.0, b.AvgErrorCount, 1e-9)
	assert.InDelta(t, 200.0, b.AvgResponseTime, 1e-9)
	assert.InDelta(t, 30000.0, b.AvgAlertDuration, 1e-9)
	assert.InDelta(t, 0.5, b.FalsePositiveRate, 1e-9)
	assert.InDelta(t, 1.5, b.AlertRatePerHour, 1e-9)
	assert.InDelta(t, 30.0, b.AvgCPUUsage, 1e-9, "unknown cpu readings are ignored")
	assert.InDelta(t, 2000.0, b.AvgMemoryUsage, 1e-9)

	u := baselines["users"]
	assert.Equal(t, 0.0, u.AlertRatePerHour, "zero time span")
	assert.Equal(t, 0.0, u.FalsePositiveRate)
	assert.Equal(t, 0.0, u.AvgAlertDuration)
}

func TestTemporalPatterns(t *testing.T) {
	events := make([]*model.AlertEvent, 0)
	for i := 0; i < 20; i++ {
		events = append(events, fired("orders", "error_burst", model.AlertTypeError, t0.Add(time.Duration(i)*time.Second)))
	}
	events = append(events, fired("orders", "error_burst", model.AlertTypeError, t0.Add(26*time.Hour)))

	tp := newAnalyzer(events).TemporalPatterns()
	assert.Equal(t, 20, tp.HourlyDistribution[10])
	assert.Equal(t, 1, tp.HourlyDistribution[12])
	assert.Equal(t, 20, tp.DailyDistribution[int(time.Monday)])
	assert.Equal(t, 1, tp.DailyDistribution[int(time.Tuesday)])
	assert.Equal(t, []int{10}, tp.PeakHours)
	assert.Equal(t, []int{int(time.Monday)}, tp.PeakDays)
}

func TestTemporalPatterns_UsesLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	events := []*model.AlertEvent{fired("orders", "error_burst", model.AlertTypeError, t0)}

	tp := New(events, shanghai, nil, zerolog.Nop()).TemporalPatterns()
	assert.Equal(t, 1, tp.HourlyDistribution[18])
}

func TestTemporalPatterns_Empty(t *testing.T) {
	tp := newAnalyzer(nil).TemporalPatterns()
	assert.Empty(t, tp.PeakHours)
	assert.Empty(t, tp.PeakDays)
}

func TestRecommendations_Normal(t *testing.T) {
	// One slow resolve per hour for a day: no hour stands out and nothing resolves quickly.
	events := make([]*model.AlertEvent, 0, 24)
	for h := 0; h < 24; h++ {
		events = append(events, resolved("orders", "error_burst", model.AlertTypeError, t0.Add(time.Duration(h)*time.Hour), 120000))
	}

	recs := newAnalyzer(events).Recommendations()
	assert.Equal(t, []string{NormalRecommendation}, recs)
}

func TestRecommendations_Triggers(t *testing.T) {
	events := make([]*model.AlertEvent, 0)
	// 60 quick resolves of the same alert within one hour: high fp, high rate, repetitive, peak hour.
	for i := 0; i < 60; i++ {
		events = append(events, resolved("orders", "error_burst", model.AlertTypeError, t0.Add(time.Duration(i)*30*time.Second), 5000))
	}

	recs := newAnalyzer(events).Recommendations()
	joined := strings.Join(recs, "\n")
	assert.Contains(t, joined, "High false positive rate (100.0%)")
	assert.Contains(t, joined, "Service orders: 100.0% of its alerts resolve within 30s")
	assert.Contains(t, joined, "alerts per hour")
	assert.Contains(t, joined, "repeated alert pairs")
	assert.Contains(t, joined, "peaks at hours [10]")
	assert.NotContains(t, joined, NormalRecommendation)
}

func TestAnalyze(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(t0.Add(24 * time.Hour))

	events := []*model.AlertEvent{
		fired("orders", "error_burst", model.AlertTypeError, t0),
		resolved("orders", "error_burst", model.AlertTypeError, t0.Add(10*time.Second), 10000),
	}

	report := New(events, time.UTC, mock, zerolog.Nop()).Analyze()
	assert.Equal(t, t0.Add(24*time.Hour), report.GeneratedAt)
	assert.Equal(t, 2, report.TotalEvents)
	require.NotNil(t, report.TimeRange)
	assert.Contains(t, report.Baselines, "orders")
	assert.Equal(t, 1, report.FalsePositives.QuickResolves)
	assert.Equal(t, 1, report.FalsePositives.RepetitivePatterns)
	assert.NotEmpty(t, report.Recommendations)
}

func TestByService(t *testing.T) {
	events := []*model.AlertEvent{
		fired("users", "a", model.AlertTypeError, t0),
		fired("orders", "b", model.AlertTypeError, t0),
		fired("users", "c", model.AlertTypeError, t0.Add(time.Second)),
	}
	partition := ByService(events)
	assert.Equal(t, []string{"orders", "users"}, ServiceNames(partition))
	require.Len(t, partition["users"], 2)
	assert.Equal(t, "a", partition["users"][0].AlertName)
}
