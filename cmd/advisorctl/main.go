// Package main implements the advisorctl CLI for operating a running
// advisord daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/pkg/server"
)

var (
	// serverURL is the base URL for the advisord HTTP server
	serverURL string

	// Version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "advisorctl",
	Short: "CLI for advisord context engine operations",
	Long: `advisorctl is a command-line interface for a running advisord daemon.
It retrieves context bundles, records advisory outcomes, inspects layer
state, and renders a live terminal dashboard.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9180", "advisord server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check advisord server health",
	Long: `Check the health status of the advisord HTTP server.

Examples:
  # Check health
  advisorctl health

  # Check health on a different server
  advisorctl health --server http://localhost:9280`,
	RunE: runHealth,
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var health server.HealthResponse
	if err := getJSON("/health", &health); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	fmt.Printf("Server Status: %s\n", health.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("advisorctl context engine CLI\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
