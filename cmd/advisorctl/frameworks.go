package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/internal/learning"
)

var (
	// frameworks command flags
	fwLimit int
	fwJSON  bool
)

func init() {
	rootCmd.AddCommand(frameworksCmd)
	frameworksCmd.Flags().IntVar(&fwLimit, "limit", 10, "Maximum frameworks to return")
	frameworksCmd.Flags().BoolVar(&fwJSON, "json", false, "Output the ranking as JSON")
}

var frameworksCmd = &cobra.Command{
	Use:   "frameworks [topic]",
	Short: "Show the top-ranked frameworks for a topic",
	Long: `Show which advisory frameworks have worked best, ranked by mean
effectiveness. Without a topic the ranking covers all recorded usage.

Examples:
  # Best frameworks overall
  advisorctl frameworks

  # Best frameworks for reorganizations
  advisorctl frameworks "team reorg" --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFrameworks,
}

// runFrameworks handles the frameworks command
func runFrameworks(cmd *cobra.Command, args []string) error {
	topic := ""
	if len(args) > 0 {
		topic = args[0]
	}
	path := fmt.Sprintf("/v1/frameworks/top?topic=%s&limit=%d", url.QueryEscape(topic), fwLimit)

	var stats []learning.FrameworkStat
	if err := getJSON(path, &stats); err != nil {
		return err
	}

	if fwJSON {
		return printJSON(stats)
	}
	if len(stats) == 0 {
		fmt.Println("No framework usage recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FRAMEWORK\tUSES\tEFFECTIVENESS\tLAST USED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n",
			s.Framework, s.UsageCount, s.MeanEffectiveness, s.LastUsed.Format("2006-01-02"))
	}
	return w.Flush()
}
