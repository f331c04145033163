package cmd

import (
	"os"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"alert-pipeline/internal/analyzer"
)

// analyzeCmd represents the analyze command.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze historical alert logs",
	Long: `Collect every alert log in the log directory and print the analysis as JSON:
per-service baselines, estimated false positive rate, temporal patterns and
recommendations.

Example:
  alertpipe analyze -c config.yaml -d /var/log/alerts`,
	Run: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addLogDirFlag(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg, logger := loadConfig(cmd)

	result, _, err := collectEvents(cmd.Context(), cfg, logger)
	exitOnError(err, "collection failed")

	report := analyzer.New(result.Events, cfg.Report.Location(), clock.New(), logger).Analyze()
	exitOnError(writeJSON(os.Stdout, report), "failed to write analysis")
}
