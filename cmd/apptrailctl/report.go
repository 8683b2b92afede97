package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var (
	reportStart       string
	reportEnd         string
	reportTeam        string
	reportWorkload    string
	reportEnvironment string
	reportCluster     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the DORA metrics report for a timeline slice",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "Range start (RFC3339, default: 30 days ago)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "Range end (RFC3339, default: now)")
	reportCmd.Flags().StringVar(&reportTeam, "team", "", "Filter by team")
	reportCmd.Flags().StringVar(&reportWorkload, "workload", "", "Filter by workload name")
	reportCmd.Flags().StringVar(&reportEnvironment, "environment", "", "Filter by environment")
	reportCmd.Flags().StringVar(&reportCluster, "cluster", "", "Filter by cluster name")
}

type reportResponse struct {
	RangeStart          time.Time `json:"rangeStart"`
	RangeEnd            time.Time `json:"rangeEnd"`
	DeploymentFrequency struct {
		PerDay float64 `json:"perDay"`
		Total  int     `json:"total"`
		Grade  string  `json:"grade"`
	} `json:"deploymentFrequency"`
	LeadTime struct {
		AverageSeconds float64 `json:"averageSeconds"`
		MedianSeconds  int64   `json:"medianSeconds"`
		P95Seconds     int64   `json:"p95Seconds"`
		SampleSize     int     `json:"sampleSize"`
		Grade          string  `json:"grade"`
	} `json:"leadTime"`
	ChangeFailureRate struct {
		Percentage    float64 `json:"percentage"`
		FailedCount   int     `json:"failedCount"`
		TotalCount    int     `json:"totalCount"`
		RollbackCount int     `json:"rollbackCount"`
		Grade         string  `json:"grade"`
	} `json:"changeFailureRate"`
	MTTR struct {
		TotalFailures   int     `json:"totalFailures"`
		TotalRecoveries int     `json:"totalRecoveries"`
		AverageSeconds  float64 `json:"averageSeconds"`
		Grade           string  `json:"grade"`
	} `json:"mttr"`
	OverallGrade string `json:"overallGrade"`
}

func reportQuery() url.Values {
	query := url.Values{}
	if reportStart != "" {
		query.Set("start", reportStart)
	}
	if reportEnd != "" {
		query.Set("end", reportEnd)
	}
	if reportTeam != "" {
		query.Set("team", reportTeam)
	}
	if reportWorkload != "" {
		query.Set("workload", reportWorkload)
	}
	if reportEnvironment != "" {
		query.Set("environment", reportEnvironment)
	}
	if reportCluster != "" {
		query.Set("cluster", reportCluster)
	}
	return query
}

func runReport(cmd *cobra.Command, args []string) error {
	var resp reportResponse
	if err := newClient().getJSON("/api/metrics/v1alpha1/report", reportQuery(), &resp); err != nil {
		return err
	}

	if outputFmt != "table" {
		return render(resp)
	}

	fmt.Printf("Range: %s to %s\n\n",
		resp.RangeStart.Format(time.RFC3339), resp.RangeEnd.Format(time.RFC3339))

	headers := []string{"Metric", "Value", "Grade"}
	rows := [][]string{
		{"Deployment frequency", fmt.Sprintf("%.2f/day (%d total)", resp.DeploymentFrequency.PerDay, resp.DeploymentFrequency.Total), cellGrade(resp.DeploymentFrequency.Grade)},
		{"Lead time (avg)", cellSeconds(resp.LeadTime.AverageSeconds), cellGrade(resp.LeadTime.Grade)},
		{"Change failure rate", fmt.Sprintf("%.1f%% (%d/%d)", resp.ChangeFailureRate.Percentage, resp.ChangeFailureRate.FailedCount, resp.ChangeFailureRate.TotalCount), cellGrade(resp.ChangeFailureRate.Grade)},
		{"MTTR (avg)", cellSeconds(resp.MTTR.AverageSeconds), cellGrade(resp.MTTR.Grade)},
		{"Overall", "", cellGrade(resp.OverallGrade)},
	}
	table(headers, rows)
	return nil
}
