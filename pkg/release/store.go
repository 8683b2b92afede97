package release

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/apptrail-sh/control-plane/pkg/history"
	"github.com/apptrail-sh/control-plane/pkg/registry"
)

// Store provides database operations for releases and the attempt ledger.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new release Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the release tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Release{}, &FetchAttempt{}); err != nil {
		return fmt.Errorf("auto-migrate release tables: %w", err)
	}
	return nil
}

// Upsert creates or refreshes a release. The conflict is resolved on the
// (repository, tag_name) unique index; the returned row carries the
// authoritative ID either way.
func (s *Store) Upsert(rel *Release) (*Release, error) {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "repository"}, {Name: "tag_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "notes", "author", "url", "published_at", "updated_at",
		}),
	}).Create(rel).Error
	if err != nil {
		return nil, fmt.Errorf("upsert release: %w", err)
	}

	// Re-read: on conflict some dialects do not report the existing row's ID.
	return s.FindByTag(rel.Repository, rel.TagName)
}

// FindByTag retrieves a release by repository and exact tag name. Returns
// nil, nil if no record exists.
func (s *Store) FindByTag(repository, tagName string) (*Release, error) {
	var rel Release
	err := s.db.Where("repository = ? AND tag_name = ?", repository, tagName).First(&rel).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find release: %w", err)
	}
	return &rel, nil
}

// FindByTagCandidates searches the repository's releases under the tag
// variants of version; first match wins. Returns nil, nil when none match.
func (s *Store) FindByTagCandidates(repository, version string) (*Release, error) {
	for _, tag := range TagCandidates(version) {
		rel, err := s.FindByTag(repository, tag)
		if err != nil {
			return nil, err
		}
		if rel != nil {
			return rel, nil
		}
	}
	return nil, nil
}

// LinkMatching points every unlinked timeline row of the repository whose
// current version matches one of the tag variants at the release. Returns
// the number of rows linked.
func (s *Store) LinkMatching(repositoryURL string, releaseID uint, versions []string) (int64, error) {
	if len(versions) == 0 {
		return 0, nil
	}

	instanceIDs := s.db.Model(&registry.WorkloadInstance{}).
		Select("workload_instances.id").
		Joins("JOIN workloads ON workloads.id = workload_instances.workload_id").
		Where("workloads.repository_url = ?", repositoryURL)

	result := s.db.Model(&history.Entry{}).
		Where("release_id IS NULL AND current_version IN ? AND workload_instance_id IN (?)", versions, instanceIDs).
		Update("release_id", releaseID)
	if result.Error != nil {
		return 0, fmt.Errorf("link matching entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RecordAttempt writes or refreshes the ledger entry for a failed lookup.
func (s *Store) RecordAttempt(repository, version string, attemptedAt time.Time) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository"}, {Name: "version"}},
		DoUpdates: clause.AssignmentColumns([]string{"attempted_at"}),
	}).Create(&FetchAttempt{
		Repository:  repository,
		Version:     version,
		AttemptedAt: attemptedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("record fetch attempt: %w", err)
	}
	return nil
}

// DeleteAttempt removes the ledger entry for a pair once its release is
// linked.
func (s *Store) DeleteAttempt(repository, version string) error {
	err := s.db.Where("repository = ? AND version = ?", repository, version).
		Delete(&FetchAttempt{}).Error
	if err != nil {
		return fmt.Errorf("delete fetch attempt: %w", err)
	}
	return nil
}

// SweepAttempts deletes ledger entries last attempted before the cutoff,
// bounding the negative cache for releases that never appear.
func (s *Store) SweepAttempts(cutoff time.Time) (int64, error) {
	result := s.db.Where("attempted_at < ?", cutoff).Delete(&FetchAttempt{})
	if result.Error != nil {
		return 0, fmt.Errorf("sweep fetch attempts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
