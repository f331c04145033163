package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alert-pipeline/internal/collector"
	"alert-pipeline/internal/config"
)

// logDir overrides collector.log_dir for the offline commands.
var logDir string

func addLogDirFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&logDir, "dir", "d", "", "directory holding *.ndjson alert logs (overrides collector.log_dir)")
}

// loadConfig loads the config file and builds the root logger.
// An explicit --log-level overrides the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger) {
	configPath := GetConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		// Use temporary console logger for config loading errors
		tmpLogger := setupLogger("error", "console", time.Local)
		tmpLogger.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		fmt.Fprintf(os.Stderr, "❌ failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		level = GetLogLevel()
	}
	logger := setupLogger(level, cfg.Logging.Format, cfg.Report.Location())
	logger.Debug().
		Str("config_path", configPath).
		Str("log_level", level).
		Str("log_format", cfg.Logging.Format).
		Msg("configuration loaded successfully")

	return cfg, logger
}

// setupLogger creates a zerolog logger with the specified level and format.
// Timestamps are rendered in tz.
func setupLogger(level string, format string, tz *time.Location) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if tz == nil {
		tz = time.Local
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(tz)
	}

	var output io.Writer
	if format == "json" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// collectEvents reads every alert log under the configured (or overridden) directory.
func collectEvents(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*collector.Result, string, error) {
	dir := cfg.Collector.LogDir
	if logDir != "" {
		dir = logDir
	}

	result, err := collector.NewFromConfig(&cfg.Collector, logger).Collect(ctx, dir)
	if err != nil {
		return nil, dir, fmt.Errorf("failed to collect alert logs: %w", err)
	}

	for _, f := range result.FailedFiles {
		logger.Warn().Str("file", f.Path).Str("error", f.Error).Msg("alert log could not be read")
	}
	return result, dir, nil
}

// generateFilename creates a filename from the template.
// Supports the {{.Date}} placeholder.
func generateFilename(template string, now time.Time) string {
	if template == "" {
		template = "alert_report_{{.Date}}"
	}

	dateStr := now.Format("2006-01-02")
	filename := strings.ReplaceAll(template, "{{.Date}}", dateStr)
	filename = strings.ReplaceAll(filename, "{{ .Date }}", dateStr)

	return filename
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitOnError(err error, msg string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", msg, err)
	os.Exit(1)
}

func printSeparator() {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}
