package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health and readiness",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := newClient()

	liveBody, liveStatus, err := client.getText("/healthz")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	readyBody, readyStatus, err := client.getText("/readyz")
	if err != nil {
		// Readiness failure is not fatal; the server might still be starting.
		readyBody, readyStatus = err.Error(), 0
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return render(map[string]any{
			"liveness":  map[string]any{"status": liveStatus, "body": liveBody},
			"readiness": map[string]any{"status": readyStatus, "body": readyBody},
		})
	}

	headers := []string{"Check", "Status", "Detail"}
	rows := [][]string{
		{"Liveness", httpStatusLabel(liveStatus), liveBody},
		{"Readiness", httpStatusLabel(readyStatus), readyBody},
	}
	table(headers, rows)
	return nil
}

func httpStatusLabel(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	if status == 0 {
		return "unreachable"
	}
	return fmt.Sprintf("%d", status)
}
