package metrics

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/apptrail-sh/control-plane/pkg/history"
	"github.com/apptrail-sh/control-plane/pkg/registry"
)

// ReportFilter selects the timeline slice a report is computed over.
type ReportFilter struct {
	Start        time.Time
	End          time.Time
	TeamName     string
	WorkloadName string
	Environment  string
	ClusterName  string
}

// Source loads timeline snapshots for the metrics engine. It is the only
// part of this package that touches the database; the computations stay
// pure over what it returns.
type Source struct {
	db *gorm.DB
}

// NewSource creates a metrics Source.
func NewSource(db *gorm.DB) *Source {
	return &Source{db: db}
}

// Entries returns the entries matching the filter in chronological order.
func (s *Source) Entries(filter ReportFilter) ([]history.Entry, error) {
	instanceIDs, _, err := s.matchingInstances(filter)
	if err != nil {
		return nil, err
	}
	if instanceIDs != nil && len(instanceIDs) == 0 {
		return nil, nil
	}
	return history.NewStore(s.db).DetectedBetween(filter.Start, filter.End, instanceIDs)
}

// GroupedEntries buckets the matching entries by team or workload name.
// Instances without a team fall into the "unassigned" group.
func (s *Source) GroupedEntries(filter ReportFilter, groupBy string) (map[string][]history.Entry, error) {
	if groupBy != "team" && groupBy != "workload" {
		return nil, fmt.Errorf("unsupported groupBy %q (expected team or workload)", groupBy)
	}

	instanceIDs, keys, err := s.matchingInstancesGrouped(filter, groupBy)
	if err != nil {
		return nil, err
	}
	if len(instanceIDs) == 0 {
		return map[string][]history.Entry{}, nil
	}

	entries, err := history.NewStore(s.db).DetectedBetween(filter.Start, filter.End, instanceIDs)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]history.Entry)
	for _, e := range entries {
		key, ok := keys[e.WorkloadInstanceID]
		if !ok {
			continue
		}
		groups[key] = append(groups[key], e)
	}
	return groups, nil
}

// matchingInstances returns the instance IDs the filter selects, or nil
// when the filter has no instance-level constraints (meaning: all).
func (s *Source) matchingInstances(filter ReportFilter) ([]uint, map[uint]string, error) {
	if filter.TeamName == "" && filter.WorkloadName == "" && filter.Environment == "" && filter.ClusterName == "" {
		return nil, nil, nil
	}
	return s.queryInstances(filter, "")
}

func (s *Source) matchingInstancesGrouped(filter ReportFilter, groupBy string) ([]uint, map[uint]string, error) {
	ids, keys, err := s.queryInstances(filter, groupBy)
	if err != nil {
		return nil, nil, err
	}
	return ids, keys, nil
}

// instanceRow is the flattened join row used to resolve filters and
// grouping keys in one query.
type instanceRow struct {
	InstanceID   uint   `gorm:"column:instance_id"`
	TeamName     string `gorm:"column:team_name"`
	WorkloadName string `gorm:"column:workload_name"`
}

func (s *Source) queryInstances(filter ReportFilter, groupBy string) ([]uint, map[uint]string, error) {
	q := s.db.Model(&registry.WorkloadInstance{}).
		Select("workload_instances.id AS instance_id, workloads.team_name AS team_name, workloads.name AS workload_name").
		Joins("JOIN workloads ON workloads.id = workload_instances.workload_id")

	if filter.TeamName != "" {
		q = q.Where("workloads.team_name = ?", filter.TeamName)
	}
	if filter.WorkloadName != "" {
		q = q.Where("workloads.name = ?", filter.WorkloadName)
	}
	if filter.Environment != "" {
		q = q.Where("workload_instances.environment = ?", filter.Environment)
	}
	if filter.ClusterName != "" {
		q = q.Joins("JOIN clusters ON clusters.id = workload_instances.cluster_id").
			Where("clusters.name = ?", filter.ClusterName)
	}

	var rows []instanceRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("resolve instances for report: %w", err)
	}

	ids := make([]uint, 0, len(rows))
	keys := make(map[uint]string, len(rows))
	for _, row := range rows {
		ids = append(ids, row.InstanceID)
		switch groupBy {
		case "team":
			key := row.TeamName
			if key == "" {
				key = "unassigned"
			}
			keys[row.InstanceID] = key
		case "workload":
			keys[row.InstanceID] = row.WorkloadName
		}
	}
	return ids, keys, nil
}
