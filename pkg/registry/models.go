// Package registry resolves agent-reported workload references into
// canonical Cluster, Workload, and WorkloadInstance records with stable
// integer identity. The rest of the control plane references instances by ID
// and never re-derives identity from event payloads.
package registry

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Well-known label keys the agent forwards from workload metadata.
const (
	LabelTeam       = "apptrail.sh/team"
	LabelRepository = "apptrail.sh/repository"
)

// JSONStringMap stores a string-to-string label map as a JSON column.
type JSONStringMap map[string]string

// Value implements driver.Valuer.
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal label map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONStringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported label map type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Cluster is one reporting Kubernetes cluster, keyed by the agent's
// cluster ID.
type Cluster struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Name        string    `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_clusters_name"`
	FirstSeenAt time.Time `json:"firstSeenAt" gorm:"column:first_seen_at;not null"`
}

func (Cluster) TableName() string { return "clusters" }

// Workload is the logical application a workload instance belongs to,
// identified by name and kind across clusters.
type Workload struct {
	ID            uint         `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Name          string       `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_workloads_name_kind,priority:1"`
	Kind          string       `json:"kind" gorm:"column:kind;type:varchar(32);not null;uniqueIndex:idx_workloads_name_kind,priority:2"`
	TeamName      string       `json:"teamName" gorm:"column:team_name;type:varchar(255);index"`
	RepositoryURL string       `json:"repositoryUrl" gorm:"column:repository_url;type:varchar(512)"`
	FirstSeenAt   time.Time    `json:"firstSeenAt" gorm:"column:first_seen_at;not null"`
}

func (Workload) TableName() string { return "workloads" }

// WorkloadInstance is one workload running in one namespace of one cluster.
// Identity is the (workload, cluster, namespace) triple; environment, labels
// and the current-version bookkeeping fields are mutable.
type WorkloadInstance struct {
	ID             uint          `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	WorkloadID     uint          `json:"workloadId" gorm:"column:workload_id;not null;uniqueIndex:idx_instances_identity,priority:1"`
	ClusterID      uint          `json:"clusterId" gorm:"column:cluster_id;not null;uniqueIndex:idx_instances_identity,priority:2"`
	Namespace      string        `json:"namespace" gorm:"column:namespace;type:varchar(255);not null;uniqueIndex:idx_instances_identity,priority:3"`
	Environment    string        `json:"environment" gorm:"column:environment;type:varchar(64);index"`
	CurrentVersion string        `json:"currentVersion" gorm:"column:current_version;type:varchar(255)"`
	Labels         JSONStringMap `json:"labels" gorm:"column:labels;type:text"`
	FirstSeenAt    time.Time     `json:"firstSeenAt" gorm:"column:first_seen_at;not null"`
	LastUpdatedAt  time.Time     `json:"lastUpdatedAt" gorm:"column:last_updated_at;not null"`
}

func (WorkloadInstance) TableName() string { return "workload_instances" }
