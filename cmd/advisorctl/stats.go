package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chriscantu/advisord/internal/dashboard"
	"github.com/chriscantu/advisord/internal/memory"
	"github.com/chriscantu/advisord/internal/monitor"
	"github.com/chriscantu/advisord/pkg/server"
)

var (
	// stats command flags
	statsReset bool
	statsJSON  bool
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsReset, "reset", false, "Reset the aggregates instead of reading them")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output the raw snapshot as JSON")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine performance aggregates",
	Long: `Show the daemon's retrieval and outcome aggregates since start or
the last reset.

Examples:
  # Read the current snapshot
  advisorctl stats

  # Zero the aggregates
  advisorctl stats --reset`,
	RunE: runStats,
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	if statsReset {
		if err := postJSON("/v1/stats/reset", nil, nil); err != nil {
			return err
		}
		fmt.Println("Stats reset.")
		return nil
	}

	// Stats and health are independent reads, so fetch them in parallel.
	var (
		stats  monitor.AggregateMetrics
		health server.HealthResponse
	)
	g := new(errgroup.Group)
	g.Go(func() error { return getJSON("/v1/stats", &stats) })
	g.Go(func() error { return getJSON("/health", &health) })
	if err := g.Wait(); err != nil {
		return err
	}

	if statsJSON {
		return printJSON(stats)
	}

	fmt.Printf("Server: %s (%s)\n\n", serverURL, health.Status)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Retrievals\t%d\n", stats.Retrievals)
	fmt.Fprintf(w, "  cache hits / misses\t%d / %d\n", stats.CacheHits, stats.CacheMisses)
	fmt.Fprintf(w, "  fallback bundles\t%d\n", stats.Fallbacks)
	fmt.Fprintf(w, "  latency p50 / p95\t%s / %s\n",
		dashboard.FormatLatencyMS(stats.LatencyP50MS), dashboard.FormatLatencyMS(stats.LatencyP95MS))
	fmt.Fprintf(w, "Bundles\t\n")
	fmt.Fprintf(w, "  fragments served\t%s\n", dashboard.FormatCount(stats.FragmentsReturned))
	fmt.Fprintf(w, "  payload\t%s of %s budgeted\n",
		dashboard.FormatBytes(stats.BytesReturned), dashboard.FormatBytes(stats.BytesBudget))
	fmt.Fprintf(w, "  mean relevance\t%s\n", dashboard.FormatPercent(stats.MeanRelevance))
	fmt.Fprintf(w, "  mean coverage\t%s\n", dashboard.FormatPercent(stats.MeanCoverage))
	fmt.Fprintf(w, "Outcomes\t%d\n", stats.Outcomes)
	fmt.Fprintf(w, "  writes attempted / failed\t%d / %d\n", stats.WritesAttempted, stats.WritesFailed)

	total := uint64(0)
	for _, kind := range memory.LayerKinds {
		total += stats.LayerMisses[kind]
	}
	if total > 0 {
		fmt.Fprintf(w, "Layer misses\t\n")
		for _, kind := range memory.LayerKinds {
			if n := stats.LayerMisses[kind]; n > 0 {
				fmt.Fprintf(w, "  %s\t%d\n", kind, n)
			}
		}
	}
	return w.Flush()
}
