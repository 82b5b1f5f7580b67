package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/internal/api"
)

var (
	// archive command flags
	arLimit int
	arJSON  bool
)

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveSearchCmd)

	archiveSearchCmd.Flags().IntVar(&arLimit, "limit", 10, "Maximum hits to return")
	archiveSearchCmd.Flags().BoolVar(&arJSON, "json", false, "Output hits as JSON")
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Query the evicted-turn archive",
	Long: `Query conversation turns that aged out of session memory into the
archive. Requires the daemon to run with archive.enabled.`,
}

var archiveSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search archived conversation turns",
	Long: `Search the archive by semantic similarity.

Examples:
  # Find old discussions about the platform roadmap
  advisorctl archive search "platform roadmap" --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runArchiveSearch,
}

// runArchiveSearch handles the archive search command
func runArchiveSearch(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/v1/archive/search?q=%s&limit=%d", url.QueryEscape(args[0]), arLimit)

	var resp api.ArchiveSearchResponse
	if err := getJSON(path, &resp); err != nil {
		return err
	}

	if arJSON {
		return printJSON(resp.Hits)
	}
	if len(resp.Hits) == 0 {
		fmt.Println("No archived turns matched.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSESSION\tCREATED\tCONTENT")
	for _, hit := range resp.Hits {
		created := ""
		if !hit.CreatedAt.IsZero() {
			created = hit.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n", hit.Score, hit.SessionID, created, truncate(hit.Content, 60))
	}
	return w.Flush()
}
