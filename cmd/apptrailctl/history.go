package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyPageSize  int
	historyPageToken string
)

var historyCmd = &cobra.Command{
	Use:   "history <instance-id>",
	Short: "Show the deployment version timeline of a workload instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "Entries per page")
	historyCmd.Flags().StringVar(&historyPageToken, "page-token", "", "Continuation token from a previous page")
}

type historyEntry struct {
	ID                        uint       `json:"id"`
	CurrentVersion            string     `json:"currentVersion"`
	PreviousVersion           string     `json:"previousVersion"`
	DeploymentPhase           *string    `json:"deploymentPhase"`
	DeploymentStatus          *string    `json:"deploymentStatus"`
	DeploymentDurationSeconds *int64     `json:"deploymentDurationSeconds"`
	DetectedAt                time.Time  `json:"detectedAt"`
	ReleaseID                 *uint      `json:"releaseId"`
}

type historyResponse struct {
	Entries       []historyEntry `json:"entries"`
	NextPageToken string         `json:"nextPageToken"`
	TotalSize     int            `json:"totalSize"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
		return fmt.Errorf("invalid instance ID: %s", args[0])
	}

	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(historyPageSize))
	if historyPageToken != "" {
		query.Set("pageToken", historyPageToken)
	}

	var resp historyResponse
	path := fmt.Sprintf("/api/history/v1alpha1/instances/%s/entries", args[0])
	if err := newClient().getJSON(path, query, &resp); err != nil {
		return err
	}

	if outputFmt != "table" {
		return render(resp)
	}

	headers := []string{"Detected", "Version", "Previous", "Phase", "Status", "Duration", "Release"}
	rows := make([][]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		rows = append(rows, []string{
			e.DetectedAt.Format(time.RFC3339),
			cellVersion(e.CurrentVersion, 30),
			cellVersion(e.PreviousVersion, 30),
			cellString(e.DeploymentPhase),
			cellString(e.DeploymentStatus),
			cellDuration(e.DeploymentDurationSeconds),
			cellRef(e.ReleaseID),
		})
	}
	table(headers, rows)

	fmt.Printf("\n%d entry(ies)", resp.TotalSize)
	if resp.NextPageToken != "" {
		fmt.Printf(", next page: --page-token %s", resp.NextPageToken)
	}
	fmt.Println()
	return nil
}
