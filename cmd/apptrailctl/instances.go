package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var (
	instancesCluster     string
	instancesEnvironment string
	instancesTeam        string
	instancesNamespace   string
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List registered workload instances",
	RunE:  runInstances,
}

func init() {
	instancesCmd.Flags().StringVar(&instancesCluster, "cluster", "", "Filter by cluster name")
	instancesCmd.Flags().StringVar(&instancesEnvironment, "environment", "", "Filter by environment")
	instancesCmd.Flags().StringVar(&instancesTeam, "team", "", "Filter by team")
	instancesCmd.Flags().StringVar(&instancesNamespace, "namespace", "", "Filter by namespace")
}

type instanceItem struct {
	ID             uint              `json:"id"`
	WorkloadID     uint              `json:"workloadId"`
	ClusterID      uint              `json:"clusterId"`
	Namespace      string            `json:"namespace"`
	Environment    string            `json:"environment"`
	CurrentVersion string            `json:"currentVersion"`
	Labels         map[string]string `json:"labels"`
	LastUpdatedAt  time.Time         `json:"lastUpdatedAt"`
}

type instancesResponse struct {
	Instances []instanceItem `json:"instances"`
	TotalSize int            `json:"totalSize"`
}

func runInstances(cmd *cobra.Command, args []string) error {
	query := url.Values{}
	if instancesCluster != "" {
		query.Set("cluster", instancesCluster)
	}
	if instancesEnvironment != "" {
		query.Set("environment", instancesEnvironment)
	}
	if instancesTeam != "" {
		query.Set("team", instancesTeam)
	}
	if instancesNamespace != "" {
		query.Set("namespace", instancesNamespace)
	}

	var resp instancesResponse
	if err := newClient().getJSON("/api/registry/v1alpha1/instances", query, &resp); err != nil {
		return err
	}

	if outputFmt != "table" {
		return render(resp)
	}

	headers := []string{"ID", "Namespace", "Environment", "Version", "Updated"}
	rows := make([][]string, 0, len(resp.Instances))
	for _, inst := range resp.Instances {
		rows = append(rows, []string{
			fmt.Sprintf("%d", inst.ID),
			inst.Namespace,
			inst.Environment,
			cellVersion(inst.CurrentVersion, 40),
			inst.LastUpdatedAt.Format(time.RFC3339),
		})
	}
	table(headers, rows)
	fmt.Printf("\n%d instance(s)\n", resp.TotalSize)
	return nil
}
