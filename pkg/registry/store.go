package registry

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/apptrail-sh/control-plane/pkg/event"
)

// Store provides database operations for clusters, workloads, and workload
// instances. Stores are cheap to construct; callers running inside a
// transaction build one over the transaction handle.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new registry Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the registry tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Cluster{}, &Workload{}, &WorkloadInstance{}); err != nil {
		return fmt.Errorf("auto-migrate registry tables: %w", err)
	}
	return nil
}

// Resolve returns the canonical workload instance for an event, creating
// cluster, workload, and instance rows as needed. Concurrent first-seen
// events race on the unique identity indexes; a conflicting insert falls
// back to re-reading the row the winner created.
func (s *Store) Resolve(ev *event.DeploymentEvent) (*WorkloadInstance, error) {
	cluster, err := s.ensureCluster(ev.Source.ClusterID)
	if err != nil {
		return nil, err
	}

	workload, err := s.ensureWorkload(ev)
	if err != nil {
		return nil, err
	}

	return s.ensureInstance(workload, cluster, ev)
}

// GetInstance retrieves a workload instance by ID. Returns nil, nil if no
// record exists.
func (s *Store) GetInstance(id uint) (*WorkloadInstance, error) {
	var instance WorkloadInstance
	if err := s.db.First(&instance, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return &instance, nil
}

// GetWorkload retrieves a workload by ID. Returns nil, nil if no record
// exists.
func (s *Store) GetWorkload(id uint) (*Workload, error) {
	var workload Workload
	if err := s.db.First(&workload, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get workload: %w", err)
	}
	return &workload, nil
}

// InstanceFilter narrows ListInstances results.
type InstanceFilter struct {
	ClusterName string
	Environment string
	TeamName    string
	Namespace   string
}

// ListInstances returns workload instances matching the filter, newest
// first by last update.
func (s *Store) ListInstances(filter InstanceFilter) ([]WorkloadInstance, error) {
	q := s.db.Model(&WorkloadInstance{})
	if filter.ClusterName != "" {
		q = q.Where("cluster_id IN (?)",
			s.db.Model(&Cluster{}).Select("id").Where("name = ?", filter.ClusterName))
	}
	if filter.TeamName != "" {
		q = q.Where("workload_id IN (?)",
			s.db.Model(&Workload{}).Select("id").Where("team_name = ?", filter.TeamName))
	}
	if filter.Environment != "" {
		q = q.Where("environment = ?", filter.Environment)
	}
	if filter.Namespace != "" {
		q = q.Where("namespace = ?", filter.Namespace)
	}

	var instances []WorkloadInstance
	if err := q.Order("last_updated_at DESC").Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return instances, nil
}

// MarkVersionDetected records a new-version detection on the instance:
// current version and last-updated timestamp. Called by the history engine
// when a new timeline row is created.
func (s *Store) MarkVersionDetected(instanceID uint, version string, detectedAt time.Time) error {
	err := s.db.Model(&WorkloadInstance{}).Where("id = ?", instanceID).
		Updates(map[string]any{
			"current_version": version,
			"last_updated_at": detectedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("mark version detected: %w", err)
	}
	return nil
}

// create inserts in a nested transaction (a savepoint when the store was
// built over a transaction handle). On PostgreSQL a unique violation from a
// lost identity race would otherwise abort the caller's transaction before
// the fallback re-read can run.
func (s *Store) create(value any) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(value).Error
	})
}

func (s *Store) ensureCluster(name string) (*Cluster, error) {
	var cluster Cluster
	err := s.db.Where("name = ?", name).First(&cluster).Error
	if err == nil {
		return &cluster, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("find cluster: %w", err)
	}

	cluster = Cluster{Name: name, FirstSeenAt: time.Now().UTC()}
	if err := s.create(&cluster); err != nil {
		// Lost the insert race; the winner's row is authoritative.
		var existing Cluster
		if lookupErr := s.db.Where("name = ?", name).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("create cluster: %w", err)
	}
	return &cluster, nil
}

func (s *Store) ensureWorkload(ev *event.DeploymentEvent) (*Workload, error) {
	kind := string(ev.Workload.Kind)
	if kind == "" {
		kind = string(event.WorkloadKindDeployment)
	}

	var workload Workload
	err := s.db.Where("name = ? AND kind = ?", ev.Workload.Name, kind).First(&workload).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("find workload: %w", err)
	}

	if err == gorm.ErrRecordNotFound {
		workload = Workload{
			Name:          ev.Workload.Name,
			Kind:          kind,
			TeamName:      ev.Label(LabelTeam),
			RepositoryURL: ev.Label(LabelRepository),
			FirstSeenAt:   time.Now().UTC(),
		}
		if err := s.create(&workload); err != nil {
			var existing Workload
			if lookupErr := s.db.Where("name = ? AND kind = ?", ev.Workload.Name, kind).First(&existing).Error; lookupErr == nil {
				return &existing, nil
			}
			return nil, fmt.Errorf("create workload: %w", err)
		}
		return &workload, nil
	}

	// Team and repository labels may appear or change after first sight.
	updates := map[string]any{}
	if team := ev.Label(LabelTeam); team != "" && team != workload.TeamName {
		updates["team_name"] = team
		workload.TeamName = team
	}
	if repo := ev.Label(LabelRepository); repo != "" && repo != workload.RepositoryURL {
		updates["repository_url"] = repo
		workload.RepositoryURL = repo
	}
	if len(updates) > 0 {
		if err := s.db.Model(&Workload{}).Where("id = ?", workload.ID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update workload labels: %w", err)
		}
	}
	return &workload, nil
}

func (s *Store) ensureInstance(workload *Workload, cluster *Cluster, ev *event.DeploymentEvent) (*WorkloadInstance, error) {
	var instance WorkloadInstance
	err := s.db.Where("workload_id = ? AND cluster_id = ? AND namespace = ?",
		workload.ID, cluster.ID, ev.Workload.Namespace).First(&instance).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("find instance: %w", err)
	}

	if err == gorm.ErrRecordNotFound {
		now := time.Now().UTC()
		instance = WorkloadInstance{
			WorkloadID:    workload.ID,
			ClusterID:     cluster.ID,
			Namespace:     ev.Workload.Namespace,
			Environment:   ev.Environment,
			Labels:        JSONStringMap(ev.Labels),
			FirstSeenAt:   now,
			LastUpdatedAt: now,
		}
		if err := s.create(&instance); err != nil {
			var existing WorkloadInstance
			lookupErr := s.db.Where("workload_id = ? AND cluster_id = ? AND namespace = ?",
				workload.ID, cluster.ID, ev.Workload.Namespace).First(&existing).Error
			if lookupErr == nil {
				return &existing, nil
			}
			return nil, fmt.Errorf("create instance: %w", err)
		}
		return &instance, nil
	}

	if instance.Environment != ev.Environment && ev.Environment != "" {
		if err := s.db.Model(&WorkloadInstance{}).Where("id = ?", instance.ID).
			Update("environment", ev.Environment).Error; err != nil {
			return nil, fmt.Errorf("update instance environment: %w", err)
		}
		instance.Environment = ev.Environment
	}
	return &instance, nil
}
