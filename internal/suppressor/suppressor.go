// Package suppressor classifies fired alert events as suppressed or allowed
// before they are handed to the routing layer.
package suppressor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

// Rule IDs of the default rules, in evaluation order.
const (
	RuleQuickResolve      = "quick-resolve"
	RuleLowSeverityOffHrs = "low-severity-offhours"
	RuleDuplicate         = "duplicate-alert"
	RuleVeryLowError      = "very-low-error"
	RuleTestDevServices   = "test-dev-services"
	RuleMaintenanceWindow = "maintenance-window"
)

// Rule is one ordered suppression predicate.
type Rule struct {
	ID        string                       `json:"id"`
	Name      string                       `json:"name"`
	Enabled   bool                         `json:"enabled"`
	Reason    string                       `json:"reason"`
	Condition func(*model.AlertEvent) bool `json:"-"`
}

// MaintenanceWindow suppresses every event of Service whose timestamp falls
// in [Start, End]. Service "*" matches every service.
type MaintenanceWindow struct {
	Service string    `json:"service"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Reason  string    `json:"reason"`
}

func (w MaintenanceWindow) matches(e *model.AlertEvent) bool {
	if w.Service != "*" && w.Service != e.ServiceName {
		return false
	}
	return !e.Timestamp.Before(w.Start) && !e.Timestamp.After(w.End)
}

// Decision is the classification of one event.
type Decision struct {
	Suppressed  bool   `json:"suppressed"`
	Reason      string `json:"reason"`
	RuleApplied string `json:"rule_applied,omitempty"`
}

// BatchResult is the classification of a batch, in input order.
type BatchResult struct {
	Suppressed []*model.AlertEvent       `json:"suppressed"`
	Allowed    []*model.AlertEvent       `json:"allowed"`
	Summary    *model.SuppressionSummary `json:"summary"`
}

// Config holds the parameters of the default rules.
type Config struct {
	OfficeHoursStart   int
	OfficeHoursEnd     int
	Location           *time.Location
	QuickResolve       time.Duration
	DuplicateWindow    time.Duration
	MinErrorCount      int
	TestMarkers        []string
	CacheSize          int
	DisabledRules      []string
	MaintenanceWindows []MaintenanceWindow
}

// DefaultConfig returns the default rule parameters.
func DefaultConfig() Config {
	return Config{
		OfficeHoursStart: 9,
		OfficeHoursEnd:   17,
		Location:         time.Local,
		QuickResolve:     30 * time.Second,
		DuplicateWindow:  5 * time.Minute,
		MinErrorCount:    3,
		TestMarkers:      []string{"test", "dev", "staging"},
		CacheSize:        4096,
	}
}

// ConfigFromSettings converts the suppression config section. loc is the
// timezone office hours are evaluated in.
func ConfigFromSettings(s *config.SuppressionConfig, loc *time.Location) (Config, error) {
	cfg := Config{
		OfficeHoursStart: s.OfficeHoursStart,
		OfficeHoursEnd:   s.OfficeHoursEnd,
		Location:         loc,
		QuickResolve:     s.QuickResolve,
		DuplicateWindow:  s.DuplicateWindow,
		MinErrorCount:    s.MinErrorCount,
		TestMarkers:      s.TestMarkers,
		CacheSize:        s.CacheSize,
		DisabledRules:    s.DisabledRules,
	}

	for _, w := range s.MaintenanceWindows {
		start, end, err := w.Range()
		if err != nil {
			return cfg, err
		}
		cfg.MaintenanceWindows = append(cfg.MaintenanceWindows, MaintenanceWindow{
			Service: w.Service,
			Start:   start,
			End:     end,
			Reason:  w.Reason,
		})
	}

	return cfg, nil
}

// Suppressor evaluates maintenance windows, then the ordered rule list, and
// registers allowed events in a bounded duplicate cache.
type Suppressor struct {
	cfg    Config
	clock  clock.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	rules   []Rule
	windows []MaintenanceWindow
	recent  *lru.Cache[string, time.Time]
}

// New creates a Suppressor with the default rules.
func New(cfg Config, clk clock.Clock, logger zerolog.Logger) (*Suppressor, error) {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}

	recent, err := lru.New[string, time.Time](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create duplicate cache: %w", err)
	}

	s := &Suppressor{
		cfg:     cfg,
		clock:   clk,
		logger:  logger.With().Str("component", "suppressor").Logger(),
		windows: append([]MaintenanceWindow(nil), cfg.MaintenanceWindows...),
		recent:  recent,
	}
	s.rules = s.defaultRules()

	for _, id := range cfg.DisabledRules {
		if err := s.setEnabled(id, false); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Suppressor) defaultRules() []Rule {
	cfg := s.cfg
	return []Rule{
		{
			ID:      RuleQuickResolve,
			Name:    "Quick resolve",
			Enabled: true,
			Reason:  fmt.Sprintf("Alert resolved in under %s, likely a false positive", cfg.QuickResolve),
			Condition: func(e *model.AlertEvent) bool {
				return e.IsQuickResolve(cfg.QuickResolve)
			},
		},
		{
			ID:      RuleLowSeverityOffHrs,
			Name:    "Low severity outside office hours",
			Enabled: true,
			Reason:  fmt.Sprintf("Low severity alert outside office hours (%02d:00-%02d:00)", cfg.OfficeHoursStart, cfg.OfficeHoursEnd),
			Condition: func(e *model.AlertEvent) bool {
				return e.Severity == model.SeverityLow && s.offHours()
			},
		},
		{
			ID:      RuleDuplicate,
			Name:    "Duplicate alert",
			Enabled: true,
			Reason:  fmt.Sprintf("Same alert from the same service within %s", cfg.DuplicateWindow),
			Condition: func(e *model.AlertEvent) bool {
				return s.isDuplicate(e)
			},
		},
		{
			ID:      RuleVeryLowError,
			Name:    "Very low error count",
			Enabled: true,
			Reason:  fmt.Sprintf("Error alert with fewer than %d errors", cfg.MinErrorCount),
			Condition: func(e *model.AlertEvent) bool {
				return e.AlertType == model.AlertTypeError && e.ErrorCount < cfg.MinErrorCount
			},
		},
		{
			ID:      RuleTestDevServices,
			Name:    "Test and development services",
			Enabled: true,
			Reason:  "Alert from a test, development or staging service",
			Condition: func(e *model.AlertEvent) bool {
				name := strings.ToLower(e.ServiceName)
				for _, marker := range cfg.TestMarkers {
					if marker != "" && strings.Contains(name, strings.ToLower(marker)) {
						return true
					}
				}
				return false
			},
		},
	}
}

// offHours evaluates the current wall-clock hour, not the event's own time.
func (s *Suppressor) offHours() bool {
	hour := s.clock.Now().In(s.cfg.Location).Hour()
	return hour < s.cfg.OfficeHoursStart || hour >= s.cfg.OfficeHoursEnd
}

// isDuplicate reports whether the same key was registered within the
// preceding duplicate window. Must be called with mu held.
func (s *Suppressor) isDuplicate(e *model.AlertEvent) bool {
	prev, ok := s.recent.Peek(e.DedupKey())
	if !ok {
		return false
	}
	gap := e.Timestamp.Sub(prev)
	return gap >= 0 && gap < s.cfg.DuplicateWindow
}

// register records e for duplicate detection, keeping the latest timestamp
// per key. Must be called with mu held.
func (s *Suppressor) register(e *model.AlertEvent) {
	key := e.DedupKey()
	if prev, ok := s.recent.Peek(key); ok && prev.After(e.Timestamp) {
		return
	}
	s.recent.Add(key, e.Timestamp)
}

// ShouldSuppress classifies one event. Events that no rule suppresses are
// registered for duplicate detection.
func (s *Suppressor) ShouldSuppress(e *model.AlertEvent) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.windows {
		if w.matches(e) {
			return Decision{
				Suppressed:  true,
				Reason:      "Service under maintenance: " + w.Reason,
				RuleApplied: RuleMaintenanceWindow,
			}
		}
	}

	for _, r := range s.rules {
		if r.Enabled && r.Condition(e) {
			return Decision{Suppressed: true, Reason: r.Reason, RuleApplied: r.ID}
		}
	}

	s.register(e)
	return Decision{Suppressed: false, Reason: "No suppression rules matched"}
}

// SuppressAlerts classifies a batch, preserving input order in both outputs.
func (s *Suppressor) SuppressAlerts(events []*model.AlertEvent) *BatchResult {
	result := &BatchResult{
		Suppressed: make([]*model.AlertEvent, 0),
		Allowed:    make([]*model.AlertEvent, 0),
		Summary:    &model.SuppressionSummary{ByRule: make(map[string]int)},
	}

	for _, e := range events {
		if e == nil {
			continue
		}
		d := s.ShouldSuppress(e)
		if d.Suppressed {
			result.Suppressed = append(result.Suppressed, e)
			result.Summary.ByRule[d.RuleApplied]++
		} else {
			result.Allowed = append(result.Allowed, e)
		}
	}

	sum := result.Summary
	sum.SuppressedCount = len(result.Suppressed)
	sum.AllowedCount = len(result.Allowed)
	sum.Total = sum.SuppressedCount + sum.AllowedCount
	if sum.Total > 0 {
		sum.SuppressionRatePercent = float64(sum.SuppressedCount) / float64(sum.Total) * 100
	}

	s.logger.Info().
		Int("total", sum.Total).
		Int("suppressed", sum.SuppressedCount).
		Int("allowed", sum.AllowedCount).
		Float64("suppression_rate_percent", sum.SuppressionRatePercent).
		Msg("suppression completed")

	return result
}

// AddMaintenanceWindow registers a maintenance window.
func (s *Suppressor) AddMaintenanceWindow(w MaintenanceWindow) error {
	if w.Service == "" {
		return fmt.Errorf("maintenance window service is required")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("maintenance window end must be after start")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows = append(s.windows, w)
	s.logger.Info().
		Str("service", w.Service).
		Time("start", w.Start).
		Time("end", w.End).
		Msg("maintenance window added")
	return nil
}

// Rules returns a copy of the rule list in evaluation order.
func (s *Suppressor) Rules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Rule(nil), s.rules...)
}

// SetRuleEnabled enables or disables the rule with the given ID.
func (s *Suppressor) SetRuleEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setEnabled(id, enabled)
}

func (s *Suppressor) setEnabled(id string, enabled bool) error {
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("unknown suppression rule: %s", id)
}

// AddRule appends a rule after the existing ones.
func (s *Suppressor) AddRule(r Rule) error {
	if r.ID == "" || r.Condition == nil {
		return fmt.Errorf("rule id and condition are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("duplicate suppression rule: %s", r.ID)
		}
	}
	s.rules = append(s.rules, r)
	return nil
}
