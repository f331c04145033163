package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/forward"
	"alert-pipeline/internal/model"
	"alert-pipeline/internal/suppressor"
)

var forwardAllowed bool // Send allowed events to the configured sinks

// suppressCmd represents the suppress command.
var suppressCmd = &cobra.Command{
	Use:   "suppress",
	Short: "Classify collected alerts with the suppression rules",
	Long: `Collect alert logs, run every event through the suppression rules and print
how many were suppressed and by which rule.

Examples:
  alertpipe suppress -c config.yaml

  # Hand the allowed events to the configured webhook and NATS sinks
  alertpipe suppress -c config.yaml --forward`,
	Run: runSuppress,
}

func init() {
	rootCmd.AddCommand(suppressCmd)
	addLogDirFlag(suppressCmd)

	suppressCmd.Flags().BoolVar(&forwardAllowed, "forward", false, "send allowed events to the configured sinks")
}

func runSuppress(cmd *cobra.Command, args []string) {
	cfg, logger := loadConfig(cmd)

	result, _, err := collectEvents(cmd.Context(), cfg, logger)
	exitOnError(err, "collection failed")

	batch, err := suppressEvents(cfg, result.Events, clock.New(), logger)
	exitOnError(err, "suppression failed")
	printSuppressionSummary(batch.Summary)

	if !forwardAllowed {
		return
	}
	exitOnError(forwardEvents(cmd.Context(), &cfg.Forward, batch.Allowed, logger), "forwarding failed")
	fmt.Printf("✅ forwarded %d allowed events\n", len(batch.Allowed))
}

// suppressEvents classifies events with a suppressor built from the config.
func suppressEvents(cfg *config.Config, events []*model.AlertEvent, clk clock.Clock, logger zerolog.Logger) (*suppressor.BatchResult, error) {
	scfg, err := suppressor.ConfigFromSettings(&cfg.Suppression, cfg.Report.Location())
	if err != nil {
		return nil, err
	}
	s, err := suppressor.New(scfg, clk, logger)
	if err != nil {
		return nil, err
	}
	return s.SuppressAlerts(events), nil
}

func forwardEvents(ctx context.Context, cfg *config.ForwardConfig, events []*model.AlertEvent, logger zerolog.Logger) error {
	fanout, err := forward.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer fanout.Close()

	if fanout.Len() == 0 {
		return fmt.Errorf("no forward sinks are enabled")
	}
	return fanout.Send(ctx, events)
}

func printSuppressionSummary(sum *model.SuppressionSummary) {
	printSeparator()
	fmt.Printf("   Total events: %d\n", sum.Total)
	fmt.Printf("   Suppressed: %d\n", sum.SuppressedCount)
	fmt.Printf("   Allowed: %d\n", sum.AllowedCount)
	fmt.Printf("   Suppression rate: %.1f%%\n", sum.SuppressionRatePercent)

	rules := make([]string, 0, len(sum.ByRule))
	for id := range sum.ByRule {
		rules = append(rules, id)
	}
	sort.Strings(rules)
	for _, id := range rules {
		fmt.Printf("     %-24s %d\n", id, sum.ByRule[id])
	}
}
