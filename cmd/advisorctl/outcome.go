package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/internal/api"
)

var (
	// outcome command flags
	outSession       string
	outQuery         string
	outResponse      string
	outFrameworks    []string
	outEffectiveness float64
)

func init() {
	rootCmd.AddCommand(outcomeCmd)
	outcomeCmd.Flags().StringVar(&outSession, "session", "", "Session identifier (required)")
	outcomeCmd.Flags().StringVar(&outQuery, "query", "", "The question that was answered (required)")
	outcomeCmd.Flags().StringVar(&outResponse, "response", "", "The advisory response given (required)")
	outcomeCmd.Flags().StringSliceVar(&outFrameworks, "framework", nil, "Framework applied in the response (repeatable)")
	outcomeCmd.Flags().Float64Var(&outEffectiveness, "effectiveness", 0, "How well the advice landed, 0.0-1.0")
	_ = outcomeCmd.MarkFlagRequired("session")
	_ = outcomeCmd.MarkFlagRequired("query")
	_ = outcomeCmd.MarkFlagRequired("response")
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Record an advisory outcome",
	Long: `Record the outcome of an advisory exchange so the engine learns
from it. The turn lands in conversation memory and any named frameworks
accrue effectiveness history.

Examples:
  # Record a turn
  advisorctl outcome --session standup-42 \
    --query "How do we split the monolith team?" \
    --response "Run a Team Topologies stream-aligned split..." \
    --framework team_topologies --effectiveness 0.8`,
	RunE: runOutcome,
}

// runOutcome handles the outcome command
func runOutcome(cmd *cobra.Command, args []string) error {
	req := api.OutcomeRequest{
		SessionID:      outSession,
		Query:          outQuery,
		Response:       outResponse,
		FrameworksUsed: outFrameworks,
	}
	if cmd.Flags().Changed("effectiveness") {
		req.Effectiveness = &outEffectiveness
	}

	var resp api.OutcomeResponse
	if err := postJSON("/v1/outcome", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Outcome %s for session %s\n", resp.Status, outSession)
	return nil
}
