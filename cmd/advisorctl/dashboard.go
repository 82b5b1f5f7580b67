package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/internal/dashboard"
)

var (
	// dashboard command flags
	dashInterval time.Duration
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().DurationVar(&dashInterval, "interval", 2*time.Second, "Stats poll interval")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard for a running daemon",
	Long: `Render a full-screen terminal dashboard that polls the daemon's
stats endpoint: retrieval rate and latency sparklines, bundle quality
gauges, cache hit ratio, and per-layer miss counts.

Keys: q quits, r forces a refresh.

Examples:
  # Watch the local daemon
  advisorctl dashboard

  # Poll a remote daemon every five seconds
  advisorctl dashboard --server http://advisord.internal:9180 --interval 5s`,
	RunE: runDashboard,
}

// runDashboard handles the dashboard command
func runDashboard(cmd *cobra.Command, args []string) error {
	model := dashboard.NewModel(serverURL, dashInterval)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
