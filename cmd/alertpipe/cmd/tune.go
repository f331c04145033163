package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"alert-pipeline/internal/detector"
	"alert-pipeline/internal/model"
	"alert-pipeline/internal/tuner"
)

// Command flags
var (
	exportPath   string // Threshold export file
	exportFormat string // json or yaml
)

// tuneCmd represents the tune command.
var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Recommend adaptive thresholds",
	Long: `Collect alert logs, compute per-service error and availability thresholds
and print them with the expected alert reduction.

Examples:
  # Print recommendations
  alertpipe tune -c config.yaml

  # Export a thresholds file the detector can load via detector.thresholds_file
  alertpipe tune -c config.yaml --export thresholds.yaml --format yaml`,
	Run: runTune,
}

func init() {
	rootCmd.AddCommand(tuneCmd)
	addLogDirFlag(tuneCmd)

	tuneCmd.Flags().StringVar(&exportPath, "export", "", "write the recommended thresholds to this file")
	tuneCmd.Flags().StringVar(&exportFormat, "format", "", "export format (json, yaml); defaults to the file extension")
}

func runTune(cmd *cobra.Command, args []string) {
	cfg, logger := loadConfig(cmd)

	result, _, err := collectEvents(cmd.Context(), cfg, logger)
	exitOnError(err, "collection failed")

	t := tuner.New(result.Events, detector.ThresholdsFromConfig(cfg.Detector.Thresholds), clock.New(), logger)
	thresholds := t.Thresholds()
	impact := t.ExpectedImpact(nil)

	printThresholds(thresholds)
	printImpact(impact)

	if exportPath == "" {
		return
	}

	format := resolveExportFormat(exportFormat, exportPath)
	exitOnError(exportThresholds(t.ExportConfig(), exportPath, format), "export failed")
	fmt.Printf("✅ thresholds exported: %s\n", exportPath)
}

// resolveExportFormat prefers the flag, then the file extension, then JSON.
func resolveExportFormat(flag, path string) string {
	if flag != "" {
		return flag
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return tuner.FormatYAML
	default:
		return tuner.FormatJSON
	}
}

func exportThresholds(cfg *model.ThresholdConfig, path, format string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := tuner.WriteConfig(f, cfg, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printThresholds(thresholds []*model.AdaptiveThreshold) {
	printSeparator()
	if len(thresholds) == 0 {
		fmt.Println("   no services found")
		return
	}
	for _, th := range thresholds {
		fmt.Printf("   %-24s %-12s current=%-8.2f recommended=%-8.2f (%+.1f%%, %s, %d samples)\n",
			th.ServiceName, th.AlertType, th.CurrentThreshold, th.RecommendedThreshold,
			th.AdjustmentPercentage, th.Confidence, th.BasedOnSamples)
	}
}

func printImpact(impact *model.ExpectedImpact) {
	printSeparator()
	fmt.Printf("   Total alerts: %d\n", impact.TotalAlerts)
	fmt.Printf("   Current false positive rate: %.1f%%\n", impact.CurrentFPRate*100)
	fmt.Printf("   Estimated reduction: %.1f%%\n", impact.EstimatedReduction*100)
	fmt.Printf("   Estimated alerts saved: %d\n", impact.EstimatedAlertsSaved)
}
