package cmd

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestGenerateFilename(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"default", "", "alert_report_2026-03-02"},
		{"placeholder", "weekly_{{.Date}}", "weekly_2026-03-02"},
		{"spaced placeholder", "weekly_{{ .Date }}", "weekly_2026-03-02"},
		{"no placeholder", "static", "static"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generateFilename(tt.template, now))
		})
	}
}

func TestGenerateFilename_UsesGivenZone(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	shanghai := time.FixedZone("CST", 8*3600)

	assert.Equal(t, "r_2026-03-03", generateFilename("r_{{.Date}}", now.In(shanghai)))
}

func TestSetupLogger_Levels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			setupLogger(tt.level, "json", time.UTC)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestResolveExportFormat(t *testing.T) {
	assert.Equal(t, "yaml", resolveExportFormat("yaml", "out.json"))
	assert.Equal(t, "yaml", resolveExportFormat("", "out.YML"))
	assert.Equal(t, "json", resolveExportFormat("", "out.json"))
	assert.Equal(t, "json", resolveExportFormat("", "thresholds"))
}
