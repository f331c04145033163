package html

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alert-pipeline/internal/model"
)

func createTestReport() *model.PipelineReport {
	t0 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tp := &model.TemporalPatterns{PeakHours: []int{10}, PeakDays: []int{1}}
	tp.HourlyDistribution[10] = 8
	tp.HourlyDistribution[11] = 2

	return &model.PipelineReport{
		GeneratedAt: t0.Add(time.Hour),
		SourceDir:   "/var/log/alerts",
		Analysis: &model.AnalysisReport{
			TotalEvents: 10,
			TimeRange:   &model.TimeRange{Start: t0, End: t0.Add(90 * time.Minute)},
			Baselines: map[string]*model.ServiceBaseline{
				"users-service":  {ServiceName: "users-service", TotalAlerts: 2, FalsePositiveRate: 0.1},
				"orders-service": {ServiceName: "orders-service", TotalAlerts: 8, FalsePositiveRate: 0.5, AvgAlertDuration: 45000},
			},
			FalsePositives:  &model.FalsePositiveAnalysis{EstimatedFPRate: 0.4, RepetitivePatterns: 7},
			Temporal:        tp,
			Recommendations: []string{"Service orders-service: review <thresholds>"},
		},
		Thresholds: []*model.AdaptiveThreshold{
			{
				ServiceName:          "orders-service",
				AlertType:            model.AlertTypeAvailability,
				CurrentThreshold:     0.5,
				RecommendedThreshold: 0.61,
				AdjustmentPercentage: 22,
				Confidence:           model.ConfidenceHigh,
				BasedOnSamples:       16,
			},
		},
		Impact: &model.ExpectedImpact{EstimatedReduction: 0.16, EstimatedAlertsSaved: 1},
	}
}

func TestWriter_Format(t *testing.T) {
	if got := NewWriter(nil, "").Format(); got != "html" {
		t.Errorf("Format() = %v, want html", got)
	}
}

func TestWriter_Write_NilReport(t *testing.T) {
	if err := NewWriter(nil, "").Write(nil, "test.html"); err == nil {
		t.Error("Write() with nil report should return error")
	}
}

func TestWriter_Write_Success(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report")

	if err := NewWriter(time.UTC, "").Write(createTestReport(), outputPath); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	content, err := os.ReadFile(outputPath + ".html")
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	html := string(content)

	for _, want := range []string{
		"Alert Pipeline Report",
		"2026-03-02 11:00:00",
		"orders-service",
		"40.0%",
		"0.61",
		"&#43;22.0%", // html/template escapes '+'
		"45.0s",
		"Peak days: Monday",
		"review &lt;thresholds&gt;",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}

	// Baselines render sorted by service name.
	if strings.Index(html, "orders-service") > strings.Index(html, "users-service") {
		t.Error("baselines should be sorted by service name")
	}
}

func TestWriter_Write_UserTemplate(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "custom.html")
	if err := os.WriteFile(tmplPath, []byte(`custom {{.TotalEvents}} {{percent 0.25}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	outputPath := filepath.Join(dir, "out.html")
	if err := NewWriter(time.UTC, tmplPath).Write(createTestReport(), outputPath); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	if string(content) != "custom 10 25.0%" {
		t.Errorf("content = %q", string(content))
	}
}

func TestWriter_Write_MissingUserTemplateFallsBack(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.html")
	w := NewWriter(time.UTC, "/nonexistent/template.html")
	if err := w.Write(&model.PipelineReport{}, outputPath); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestHourlyBars(t *testing.T) {
	bars := hourlyBars(createTestReport().Analysis.Temporal)
	if len(bars) != 24 {
		t.Fatalf("len(bars) = %d, want 24", len(bars))
	}
	if bars[10].Percent != 100 || !bars[10].Peak {
		t.Errorf("bar 10 = %+v", bars[10])
	}
	if bars[11].Percent != 25 || bars[11].Peak {
		t.Errorf("bar 11 = %+v", bars[11])
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "-"},
		{500, "500ms"},
		{45000, "45.0s"},
		{90000, "1.5m"},
		{5400000, "1.5h"},
	}
	for _, tt := range tests {
		if got := formatMillis(tt.ms); got != tt.want {
			t.Errorf("formatMillis(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
