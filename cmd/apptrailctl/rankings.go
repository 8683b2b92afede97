package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rankingsGroupBy string

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Rank teams or workloads by DORA performance",
	RunE:  runRankings,
}

func init() {
	rankingsCmd.Flags().StringVar(&rankingsGroupBy, "group-by", "team", "Grouping key: team or workload")
	rankingsCmd.Flags().StringVar(&reportStart, "start", "", "Range start (RFC3339, default: 30 days ago)")
	rankingsCmd.Flags().StringVar(&reportEnd, "end", "", "Range end (RFC3339, default: now)")
	rankingsCmd.Flags().StringVar(&reportEnvironment, "environment", "", "Filter by environment")
	rankingsCmd.Flags().StringVar(&reportCluster, "cluster", "", "Filter by cluster name")
}

type rankingsResponse struct {
	GroupBy  string `json:"groupBy"`
	Rankings []struct {
		Key        string         `json:"key"`
		Rank       int            `json:"rank"`
		Percentile float64        `json:"percentile"`
		Report     reportResponse `json:"report"`
	} `json:"rankings"`
}

func runRankings(cmd *cobra.Command, args []string) error {
	query := reportQuery()
	query.Set("groupBy", rankingsGroupBy)

	var resp rankingsResponse
	if err := newClient().getJSON("/api/metrics/v1alpha1/rankings", query, &resp); err != nil {
		return err
	}

	if outputFmt != "table" {
		return render(resp)
	}

	headers := []string{"Rank", resp.GroupBy, "Percentile", "Deploys/Day", "Grade"}
	rows := make([][]string, 0, len(resp.Rankings))
	for _, r := range resp.Rankings {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Rank),
			r.Key,
			fmt.Sprintf("%.0f", r.Percentile),
			fmt.Sprintf("%.2f", r.Report.DeploymentFrequency.PerDay),
			cellGrade(r.Report.OverallGrade),
		})
	}
	table(headers, rows)
	return nil
}
