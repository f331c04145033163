package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alert-pipeline/internal/analyzer"
	"alert-pipeline/internal/config"
	"alert-pipeline/internal/detector"
	"alert-pipeline/internal/model"
	"alert-pipeline/internal/report"
	"alert-pipeline/internal/tuner"
)

// Command flags
var (
	outputDir string   // Output directory for reports
	formats   []string // Output formats (excel, html)
)

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run the full offline pipeline and write reports",
	Long: `Run the complete offline pipeline:
1. Collect alert logs
2. Analyze baselines, false positives and temporal patterns
3. Recommend adaptive thresholds and estimate their impact
4. Classify the events with the suppression rules
5. Write Excel and HTML reports

Examples:
  alertpipe report -c config.yaml

  # Choose output formats and directory
  alertpipe report -c config.yaml -f excel,html -o ./reports`,
	Run: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addLogDirFlag(reportCmd)

	reportCmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "output formats (excel,html), comma separated")
	reportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
}

func runReport(cmd *cobra.Command, args []string) {
	fmt.Printf("🔔 alertpipe %s\n", Version)
	printSeparator()

	cfg, logger := loadConfig(cmd)
	clk := clock.New()

	rep, err := buildPipelineReport(cmd.Context(), cfg, clk, logger)
	exitOnError(err, "pipeline failed")

	paths, err := writeReports(rep, cfg, clk, logger)
	exitOnError(err, "report generation failed")

	printReportSummary(rep)
	for _, p := range paths {
		fmt.Printf("✅ report written: %s\n", p)
	}
}

// buildPipelineReport runs every offline stage over the collected events.
func buildPipelineReport(ctx context.Context, cfg *config.Config, clk clock.Clock, logger zerolog.Logger) (*model.PipelineReport, error) {
	result, dir, err := collectEvents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	loc := cfg.Report.Location()

	analysis := analyzer.New(result.Events, loc, clk, logger).Analyze()

	t := tuner.New(result.Events, detector.ThresholdsFromConfig(cfg.Detector.Thresholds), clk, logger)

	batch, err := suppressEvents(cfg, result.Events, clk, logger)
	if err != nil {
		return nil, err
	}

	return &model.PipelineReport{
		GeneratedAt:  clk.Now(),
		SourceDir:    dir,
		SkippedLines: result.Skipped,
		Analysis:     analysis,
		Thresholds:   t.Thresholds(),
		Export:       t.ExportConfig(),
		Impact:       t.ExpectedImpact(analysis.FalsePositives),
		Suppression:  batch.Summary,
	}, nil
}

// writeReports renders rep in every resolved format and returns the written paths.
func writeReports(rep *model.PipelineReport, cfg *config.Config, clk clock.Clock, logger zerolog.Logger) ([]string, error) {
	loc := cfg.Report.Location()
	registry := report.NewRegistry(loc, cfg.Report.HTMLTemplate)

	dir := resolveOutputDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(dir, generateFilename(cfg.Report.FilenameTemplate, clk.Now().In(loc)))

	var paths []string
	for _, format := range resolveFormats(cfg) {
		w, err := registry.Get(format)
		if err != nil {
			return paths, err
		}
		if err := w.Write(rep, base); err != nil {
			return paths, fmt.Errorf("failed to write %s report: %w", format, err)
		}
		path := base + extensionFor(w.Format())
		logger.Info().Str("format", w.Format()).Str("path", path).Msg("report written")
		paths = append(paths, path)
	}
	return paths, nil
}

// resolveFormats determines the output formats to use.
// Command line flags take precedence over config file.
func resolveFormats(cfg *config.Config) []string {
	if len(formats) > 0 {
		return formats
	}
	if len(cfg.Report.Formats) > 0 {
		return cfg.Report.Formats
	}
	return []string{"excel", "html"}
}

// resolveOutputDir determines the output directory to use.
// Command line flags take precedence over config file.
func resolveOutputDir(cfg *config.Config) string {
	if outputDir != "" {
		return outputDir
	}
	if cfg.Report.OutputDir != "" {
		return cfg.Report.OutputDir
	}
	return "./reports"
}

func extensionFor(format string) string {
	if format == "excel" {
		return ".xlsx"
	}
	return "." + format
}

func printReportSummary(rep *model.PipelineReport) {
	printSeparator()
	fmt.Printf("   Source: %s\n", rep.SourceDir)
	if rep.Analysis != nil {
		fmt.Printf("   Events: %d (skipped lines: %d)\n", rep.Analysis.TotalEvents, rep.SkippedLines)
		fmt.Printf("   Services: %d\n", len(rep.Analysis.Baselines))
	}
	if rep.Impact != nil {
		fmt.Printf("   Estimated alert reduction: %.1f%%\n", rep.Impact.EstimatedReduction*100)
	}
	if rep.Suppression != nil {
		fmt.Printf("   Suppressed: %d / %d\n", rep.Suppression.SuppressedCount, rep.Suppression.Total)
	}
	printSeparator()
}
