package suppressor

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// newTestSuppressor returns a suppressor whose clock sits inside office hours.
func newTestSuppressor(t *testing.T) (*Suppressor, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(t0)

	cfg := DefaultConfig()
	cfg.Location = time.UTC

	s, err := New(cfg, mock, zerolog.Nop())
	require.NoError(t, err)
	return s, mock
}

func firedEvent(service, name string, typ model.AlertType, at time.Time) *model.AlertEvent {
	return &model.AlertEvent{
		Timestamp:   at,
		ServiceName: service,
		AlertName:   name,
		AlertType:   typ,
		AlertState:  model.AlertStateFired,
		Severity:    model.SeverityHigh,
		ErrorCount:  10,
	}
}

func resolvedEvent(service string, durationMs int64, at time.Time) *model.AlertEvent {
	e := firedEvent(service, "high_latency", model.AlertTypeLatency, at)
	e.AlertState = model.AlertStateResolved
	e.AlertDuration = &durationMs
	return e
}

func TestDuplicateWithinWindow(t *testing.T) {
	s, _ := newTestSuppressor(t)

	first := s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0))
	assert.False(t, first.Suppressed)
	assert.Empty(t, first.RuleApplied)

	second := s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(2*time.Minute)))
	assert.True(t, second.Suppressed)
	assert.Equal(t, RuleDuplicate, second.RuleApplied)
}

func TestDuplicateOutsideWindowAllowed(t *testing.T) {
	s, _ := newTestSuppressor(t)

	assert.False(t, s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0)).Suppressed)
	assert.False(t, s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(6*time.Minute))).Suppressed)
}

func TestDuplicateOnlyLooksBackward(t *testing.T) {
	s, _ := newTestSuppressor(t)

	later := s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(4*time.Minute)))
	require.False(t, later.Suppressed)

	earlier := s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0))
	assert.False(t, earlier.Suppressed, "a registration after the event is not a preceding duplicate")

	// The later registration is kept, so an event shortly after it is still a duplicate.
	next := s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(6*time.Minute)))
	assert.True(t, next.Suppressed)
	assert.Equal(t, RuleDuplicate, next.RuleApplied)
}

func TestDuplicateKeyIncludesServiceNameAndType(t *testing.T) {
	s, _ := newTestSuppressor(t)

	assert.False(t, s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0)).Suppressed)
	assert.False(t, s.ShouldSuppress(firedEvent("delivery", "error_burst", model.AlertTypeError, t0)).Suppressed)
	assert.False(t, s.ShouldSuppress(firedEvent("orders", "high_latency", model.AlertTypeLatency, t0)).Suppressed)
}

func TestSuppressedEventsAreNotRegistered(t *testing.T) {
	s, _ := newTestSuppressor(t)

	// Suppressed by very-low-error, so it must not seed the duplicate cache.
	low := firedEvent("orders", "error_burst", model.AlertTypeError, t0)
	low.ErrorCount = 1
	d := s.ShouldSuppress(low)
	require.True(t, d.Suppressed)
	assert.Equal(t, RuleVeryLowError, d.RuleApplied)

	d = s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(time.Minute)))
	assert.False(t, d.Suppressed)
}

func TestTestDevServicesAlwaysSuppressed(t *testing.T) {
	s, _ := newTestSuppressor(t)

	for _, svc := range []string{"orders-test", "Orders-Dev", "staging-gateway"} {
		d := s.ShouldSuppress(firedEvent(svc, "error_burst", model.AlertTypeError, t0))
		assert.True(t, d.Suppressed, svc)
		assert.Equal(t, RuleTestDevServices, d.RuleApplied, svc)
	}
}

func TestQuickResolve(t *testing.T) {
	s, _ := newTestSuppressor(t)

	d := s.ShouldSuppress(resolvedEvent("orders", 29999, t0))
	assert.True(t, d.Suppressed)
	assert.Equal(t, RuleQuickResolve, d.RuleApplied)

	d = s.ShouldSuppress(resolvedEvent("delivery", 30000, t0))
	assert.False(t, d.Suppressed)

	noDuration := resolvedEvent("users", 0, t0)
	noDuration.AlertDuration = nil
	assert.False(t, s.ShouldSuppress(noDuration).Suppressed)
}

func TestLowSeverityUsesCurrentClockNotEventTime(t *testing.T) {
	s, mock := newTestSuppressor(t)

	// Event stamped at 03:00 but evaluated during office hours.
	night := firedEvent("orders", "traffic_spike", model.AlertTypeTraffic, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC))
	night.Severity = model.SeverityLow
	assert.False(t, s.ShouldSuppress(night).Suppressed)

	// Same kind of event stamped at noon but evaluated at 20:00.
	mock.Set(time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC))
	noon := firedEvent("delivery", "traffic_spike", model.AlertTypeTraffic, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	noon.Severity = model.SeverityLow
	d := s.ShouldSuppress(noon)
	assert.True(t, d.Suppressed)
	assert.Equal(t, RuleLowSeverityOffHrs, d.RuleApplied)

	// Office hours end is exclusive.
	mock.Set(time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC))
	assert.True(t, s.offHours())
	mock.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	assert.False(t, s.offHours())
}

func TestRuleOrder_FirstMatchWins(t *testing.T) {
	s, _ := newTestSuppressor(t)

	// Quick resolve from a test service: quick-resolve is evaluated first.
	d := s.ShouldSuppress(resolvedEvent("orders-test", 1000, t0))
	assert.Equal(t, RuleQuickResolve, d.RuleApplied)

	ids := make([]string, 0)
	for _, r := range s.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{RuleQuickResolve, RuleLowSeverityOffHrs, RuleDuplicate, RuleVeryLowError, RuleTestDevServices}, ids)
}

func TestMaintenanceWindow(t *testing.T) {
	s, _ := newTestSuppressor(t)

	require.NoError(t, s.AddMaintenanceWindow(MaintenanceWindow{
		Service: "orders",
		Start:   t0,
		End:     t0.Add(time.Hour),
		Reason:  "db migration",
	}))

	d := s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(30*time.Minute)))
	assert.True(t, d.Suppressed)
	assert.Equal(t, RuleMaintenanceWindow, d.RuleApplied)
	assert.Contains(t, d.Reason, "db migration")

	assert.False(t, s.ShouldSuppress(firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(2*time.Hour))).Suppressed)
	assert.False(t, s.ShouldSuppress(firedEvent("delivery", "error_burst", model.AlertTypeError, t0.Add(30*time.Minute))).Suppressed)

	require.NoError(t, s.AddMaintenanceWindow(MaintenanceWindow{Service: "*", Start: t0.Add(3 * time.Hour), End: t0.Add(4 * time.Hour)}))
	assert.True(t, s.ShouldSuppress(firedEvent("users", "high_cpu_usage", model.AlertTypeResource, t0.Add(3*time.Hour))).Suppressed)

	assert.Error(t, s.AddMaintenanceWindow(MaintenanceWindow{Service: "orders", Start: t0, End: t0}))
	assert.Error(t, s.AddMaintenanceWindow(MaintenanceWindow{Start: t0, End: t0.Add(time.Hour)}))
}

func TestSetRuleEnabledAndAddRule(t *testing.T) {
	s, _ := newTestSuppressor(t)

	require.NoError(t, s.SetRuleEnabled(RuleTestDevServices, false))
	assert.False(t, s.ShouldSuppress(firedEvent("orders-test", "error_burst", model.AlertTypeError, t0)).Suppressed)
	assert.Error(t, s.SetRuleEnabled("no-such-rule", true))

	require.NoError(t, s.AddRule(Rule{
		ID:        "security-always",
		Name:      "Security noise",
		Enabled:   true,
		Reason:    "security alerts are routed elsewhere",
		Condition: func(e *model.AlertEvent) bool { return e.AlertType == model.AlertTypeSecurity },
	}))
	d := s.ShouldSuppress(firedEvent("users", "auth_failure_spike", model.AlertTypeSecurity, t0))
	assert.Equal(t, "security-always", d.RuleApplied)

	assert.Error(t, s.AddRule(Rule{ID: RuleDuplicate, Condition: func(*model.AlertEvent) bool { return false }}))
	assert.Error(t, s.AddRule(Rule{ID: "no-condition"}))
}

func TestSuppressAlerts_Batch(t *testing.T) {
	s, _ := newTestSuppressor(t)

	events := []*model.AlertEvent{
		firedEvent("orders", "error_burst", model.AlertTypeError, t0),
		firedEvent("orders", "error_burst", model.AlertTypeError, t0.Add(time.Minute)),
		firedEvent("orders-test", "high_latency", model.AlertTypeLatency, t0),
		resolvedEvent("delivery", 5000, t0),
		firedEvent("delivery", "high_cpu_usage", model.AlertTypeResource, t0),
	}

	result := s.SuppressAlerts(events)

	require.Len(t, result.Allowed, 2)
	assert.Same(t, events[0], result.Allowed[0])
	assert.Same(t, events[4], result.Allowed[1])
	require.Len(t, result.Suppressed, 3)
	assert.Same(t, events[1], result.Suppressed[0])

	sum := result.Summary
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.SuppressedCount)
	assert.Equal(t, 2, sum.AllowedCount)
	assert.InDelta(t, 60.0, sum.SuppressionRatePercent, 1e-9)
	assert.Equal(t, map[string]int{RuleDuplicate: 1, RuleTestDevServices: 1, RuleQuickResolve: 1}, sum.ByRule)
}

func TestSuppressAlerts_Empty(t *testing.T) {
	s, _ := newTestSuppressor(t)

	result := s.SuppressAlerts(nil)
	assert.Equal(t, 0, result.Summary.Total)
	assert.Equal(t, 0.0, result.Summary.SuppressionRatePercent)
	assert.NotNil(t, result.Allowed)
}

func TestConfigFromSettings(t *testing.T) {
	settings := &config.SuppressionConfig{
		OfficeHoursStart: 8,
		OfficeHoursEnd:   18,
		QuickResolve:     10 * time.Second,
		DuplicateWindow:  time.Minute,
		MinErrorCount:    2,
		TestMarkers:      []string{"sandbox"},
		CacheSize:        16,
		DisabledRules:    []string{RuleLowSeverityOffHrs},
		MaintenanceWindows: []config.MaintenanceWindowConfig{
			{Service: "orders", Start: "2026-03-02T00:00:00Z", End: "2026-03-02T01:00:00Z", Reason: "upgrade"},
		},
	}

	cfg, err := ConfigFromSettings(settings, time.UTC)
	require.NoError(t, err)
	require.Len(t, cfg.MaintenanceWindows, 1)
	assert.Equal(t, time.Hour, cfg.MaintenanceWindows[0].End.Sub(cfg.MaintenanceWindows[0].Start))

	s, err := New(cfg, clock.NewMock(), zerolog.Nop())
	require.NoError(t, err)
	for _, r := range s.Rules() {
		if r.ID == RuleLowSeverityOffHrs {
			assert.False(t, r.Enabled)
		}
	}
	assert.True(t, s.ShouldSuppress(firedEvent("payments-sandbox", "error_burst", model.AlertTypeError, t0)).Suppressed)

	settings.DisabledRules = []string{"bogus"}
	cfg, err = ConfigFromSettings(settings, time.UTC)
	require.NoError(t, err)
	_, err = New(cfg, clock.NewMock(), zerolog.Nop())
	assert.Error(t, err)
}
