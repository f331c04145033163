// Package html renders pipeline reports as standalone HTML pages.
package html

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"alert-pipeline/internal/model"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Writer implements report.ReportWriter for HTML format.
type Writer struct {
	timezone     *time.Location
	templatePath string // User-defined template path (optional)
}

// TemplateData holds all data passed to the HTML template.
type TemplateData struct {
	Title           string
	GeneratedAt     string
	SourceDir       string
	SkippedLines    int
	TotalEvents     int
	FirstEvent      string
	LastEvent       string
	FalsePositives  *model.FalsePositiveAnalysis
	Impact          *model.ExpectedImpact
	Suppression     *model.SuppressionSummary
	Baselines       []*BaselineData
	Thresholds      []*ThresholdData
	HourlyBars      []*BarData
	PeakDays        []string
	Recommendations []string
}

// BaselineData is a service baseline formatted for rendering.
type BaselineData struct {
	ServiceName       string
	TotalAlerts       int
	AvgErrorCount     string
	AvgResponseTime   string
	AvgAlertDuration  string
	FalsePositiveRate string
	FPClass           string
	AlertRatePerHour  string
}

// ThresholdData is a threshold recommendation formatted for rendering.
type ThresholdData struct {
	ServiceName     string
	AlertType       string
	Current         string
	Recommended     string
	Adjustment      string
	Confidence      string
	ConfidenceClass string
	Samples         int
	Rationale       string
}

// BarData is one hour of the hourly distribution.
type BarData struct {
	Hour    int
	Count   int
	Percent int
	Peak    bool
}

// NewWriter creates an HTML writer. A nil timezone means local time.
// If templatePath is empty, the embedded default template will be used.
func NewWriter(timezone *time.Location, templatePath string) *Writer {
	if timezone == nil {
		timezone = time.Local
	}
	return &Writer{
		timezone:     timezone,
		templatePath: templatePath,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "html"
}

// Write generates an HTML report.
func (w *Writer) Write(report *model.PipelineReport, outputPath string) error {
	if report == nil {
		return fmt.Errorf("pipeline report is nil")
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = outputPath + ".html"
	}

	tmpl, err := w.loadTemplate()
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	data := w.prepareTemplateData(report)

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := tmpl.Execute(file, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

// loadTemplate prefers a user-defined template and falls back to the embedded default.
func (w *Writer) loadTemplate() (*template.Template, error) {
	funcMap := template.FuncMap{
		"percent": formatPercent,
	}

	if w.templatePath != "" {
		if _, err := os.Stat(w.templatePath); err == nil {
			tmpl, err := template.New(filepath.Base(w.templatePath)).Funcs(funcMap).ParseFiles(w.templatePath)
			if err != nil {
				return nil, fmt.Errorf("failed to parse user template: %w", err)
			}
			return tmpl, nil
		}
	}

	tmpl, err := template.New("default.html").Funcs(funcMap).ParseFS(embeddedTemplates, "templates/default.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

func (w *Writer) prepareTemplateData(report *model.PipelineReport) *TemplateData {
	data := &TemplateData{
		Title:           "Alert Pipeline Report",
		GeneratedAt:     w.formatTime(report.GeneratedAt),
		SourceDir:       report.SourceDir,
		SkippedLines:    report.SkippedLines,
		FirstEvent:      "-",
		LastEvent:       "-",
		Impact:          report.Impact,
		Suppression:     report.Suppression,
		Baselines:       make([]*BaselineData, 0),
		Thresholds:      make([]*ThresholdData, 0, len(report.Thresholds)),
		PeakDays:        make([]string, 0),
		Recommendations: make([]string, 0),
	}

	if a := report.Analysis; a != nil {
		data.TotalEvents = a.TotalEvents
		data.FalsePositives = a.FalsePositives
		data.Recommendations = a.Recommendations
		if a.TimeRange != nil {
			data.FirstEvent = w.formatTime(a.TimeRange.Start)
			data.LastEvent = w.formatTime(a.TimeRange.End)
		}
		data.Baselines = convertBaselines(a.Baselines)
		if a.Temporal != nil {
			data.HourlyBars = hourlyBars(a.Temporal)
			for _, d := range a.Temporal.PeakDays {
				data.PeakDays = append(data.PeakDays, time.Weekday(d).String())
			}
		}
	}

	for _, th := range report.Thresholds {
		data.Thresholds = append(data.Thresholds, convertThreshold(th))
	}

	return data
}

func convertBaselines(baselines map[string]*model.ServiceBaseline) []*BaselineData {
	out := make([]*BaselineData, 0, len(baselines))
	for _, b := range baselines {
		out = append(out, &BaselineData{
			ServiceName:       b.ServiceName,
			TotalAlerts:       b.TotalAlerts,
			AvgErrorCount:     fmt.Sprintf("%.2f", b.AvgErrorCount),
			AvgResponseTime:   fmt.Sprintf("%.0f ms", b.AvgResponseTime),
			AvgAlertDuration:  formatMillis(b.AvgAlertDuration),
			FalsePositiveRate: formatPercent(b.FalsePositiveRate),
			FPClass:           fpClass(b.FalsePositiveRate),
			AlertRatePerHour:  fmt.Sprintf("%.2f", b.AlertRatePerHour),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServiceName < out[j].ServiceName
	})
	return out
}

func convertThreshold(th *model.AdaptiveThreshold) *ThresholdData {
	format := "%.0f"
	if th.AlertType == model.AlertTypeAvailability {
		format = "%.2f"
	}
	return &ThresholdData{
		ServiceName:     th.ServiceName,
		AlertType:       string(th.AlertType),
		Current:         fmt.Sprintf(format, th.CurrentThreshold),
		Recommended:     fmt.Sprintf(format, th.RecommendedThreshold),
		Adjustment:      fmt.Sprintf("%+.1f%%", th.AdjustmentPercentage),
		Confidence:      string(th.Confidence),
		ConfidenceClass: confidenceClass(th.Confidence),
		Samples:         th.BasedOnSamples,
		Rationale:       th.Rationale,
	}
}

func hourlyBars(tp *model.TemporalPatterns) []*BarData {
	peak := make(map[int]bool, len(tp.PeakHours))
	for _, h := range tp.PeakHours {
		peak[h] = true
	}

	maxCount := 0
	for _, c := range tp.HourlyDistribution {
		if c > maxCount {
			maxCount = c
		}
	}

	bars := make([]*BarData, 0, len(tp.HourlyDistribution))
	for h, c := range tp.HourlyDistribution {
		pct := 0
		if maxCount > 0 {
			pct = c * 100 / maxCount
		}
		bars = append(bars, &BarData{Hour: h, Count: c, Percent: pct, Peak: peak[h]})
	}
	return bars
}

func (w *Writer) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(w.timezone).Format("2006-01-02 15:04:05")
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// formatMillis renders a millisecond duration the way an operator reads it.
func formatMillis(ms float64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d == 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}

func fpClass(rate float64) string {
	switch {
	case rate > 0.4:
		return "critical"
	case rate > 0.3:
		return "warning"
	default:
		return "normal"
	}
}

func confidenceClass(c model.Confidence) string {
	switch c {
	case model.ConfidenceHigh:
		return "normal"
	case model.ConfidenceMedium:
		return "warning"
	default:
		return "critical"
	}
}
