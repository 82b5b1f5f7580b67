package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/internal/api"
)

var (
	// retrieve command flags
	retSessionID string
	retMaxBytes  int
	retJSON      bool
)

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().StringVar(&retSessionID, "session", "", "Session identifier for conversation context")
	retrieveCmd.Flags().IntVar(&retMaxBytes, "max-bytes", 0, "Bundle size cap in bytes (0 uses the server default)")
	retrieveCmd.Flags().BoolVar(&retJSON, "json", false, "Output the raw response as JSON")
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Retrieve a context bundle for a query",
	Long: `Retrieve a packed context bundle from the advisord engine.

The bundle draws on all five context layers and reports relevance,
coherence, and coverage scores alongside the fragments.

Examples:
  # Retrieve context for a question
  advisorctl retrieve "How should we staff the platform team?"

  # Scope to a session and tighten the budget
  advisorctl retrieve --session standup-42 --max-bytes 4096 "OKR check-in"`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

// runRetrieve handles the retrieve command
func runRetrieve(cmd *cobra.Command, args []string) error {
	req := api.RetrieveRequest{
		Query:     args[0],
		SessionID: retSessionID,
		MaxBytes:  retMaxBytes,
	}

	var resp api.RetrieveResponse
	if err := postJSON("/v1/retrieve", req, &resp); err != nil {
		return err
	}

	if retJSON {
		return printJSON(resp)
	}

	b := resp.Bundle
	m := resp.Metrics
	fmt.Printf("Fragments: %d  Size: %d/%d bytes  Latency: %s\n",
		len(b.Fragments), b.SizeBytes, m.BytesBudget, m.TotalLatency)
	fmt.Printf("Relevance: %.2f  Coherence: %.2f  Coverage: %.2f\n",
		b.OverallRelevance, b.CoherenceScore, b.LayerCoverage)
	if m.CacheHit {
		fmt.Println("Served from cache.")
	}
	if b.Fallback {
		fmt.Println("DEGRADED: every layer missed; this is fallback context.")
	}
	for layer, reason := range m.LayerMisses {
		fmt.Fprintf(os.Stderr, "layer miss: %s (%s)\n", layer, reason)
	}
	if len(b.Fragments) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LAYER\tRELEVANCE\tBYTES\tCONTENT")
	for _, f := range b.Fragments {
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\n", f.Layer, f.Relevance, f.SizeBytes, truncate(f.Content, 60))
	}
	return w.Flush()
}
