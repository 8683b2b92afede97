package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
)

var rootCmd = &cobra.Command{
	Use:   "apptrailctl",
	Short: "CLI for the apptrail control plane",
	Long: `apptrailctl queries the apptrail control plane: workload instances,
their deployment version timelines, and DORA metric reports and rankings.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "Control plane URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(rankingsCmd)
	rootCmd.AddCommand(healthCmd)
}

func defaultServerURL() string {
	if v := os.Getenv("APPTRAIL_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
