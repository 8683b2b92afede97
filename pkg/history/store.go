package history

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store provides database operations for version history entries.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new history Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the version_history_entries table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("auto-migrate version history: %w", err)
	}
	return nil
}

// LatestForInstance returns the most recently detected entry for an
// instance. Returns nil, nil if the instance has no history yet.
func (s *Store) LatestForInstance(instanceID uint) (*Entry, error) {
	var entry Entry
	err := s.db.Where("workload_instance_id = ?", instanceID).
		Order("detected_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("latest entry: %w", err)
	}
	return &entry, nil
}

// FindTransition looks up the entry with the exact natural key
// (instance, currentVersion, previousVersion). Returns nil, nil when no
// such transition has been recorded.
func (s *Store) FindTransition(instanceID uint, currentVersion, previousVersion string) (*Entry, error) {
	var entry Entry
	err := s.db.Where("workload_instance_id = ? AND current_version = ? AND previous_version = ?",
		instanceID, currentVersion, previousVersion).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find transition: %w", err)
	}
	return &entry, nil
}

// Create inserts a new timeline entry. Unique-index violations are returned
// to the caller, which recovers by re-reading the winning row.
func (s *Store) Create(entry *Entry) error {
	return s.db.Create(entry).Error
}

// Save persists all fields of an existing entry, including cleared
// pointer fields.
func (s *Store) Save(entry *Entry) error {
	if err := s.db.Save(entry).Error; err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// MarkNotified persists the notification idempotency guard for a row.
func (s *Store) MarkNotified(entryID uint, phase Phase) error {
	err := s.db.Model(&Entry{}).Where("id = ?", entryID).
		Update("last_notified_phase", phase).Error
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ListForInstance returns paginated entries for an instance, newest first.
// pageToken is an RFC3339Nano timestamp; entries with detected_at before the
// token are returned.
func (s *Store) ListForInstance(instanceID uint, pageSize int, pageToken string) ([]Entry, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var totalSize int64
	if err := s.db.Model(&Entry{}).Where("workload_instance_id = ?", instanceID).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count entries: %w", err)
	}

	query := s.db.Where("workload_instance_id = ?", instanceID).
		Order("detected_at DESC, id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("detected_at < ?", t)
	}

	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list entries: %w", err)
	}

	var nextToken string
	if len(entries) > pageSize {
		nextToken = entries[pageSize-1].DetectedAt.Format(time.RFC3339Nano)
		entries = entries[:pageSize]
	}

	return entries, nextToken, int(totalSize), nil
}

// DetectedBetween returns entries detected within [start, end], optionally
// restricted to a set of instances, in chronological order. Used by the
// metrics layer, which computes over the returned snapshot without further
// database access.
func (s *Store) DetectedBetween(start, end time.Time, instanceIDs []uint) ([]Entry, error) {
	q := s.db.Where("detected_at >= ? AND detected_at <= ?", start, end)
	if len(instanceIDs) > 0 {
		q = q.Where("workload_instance_id IN ?", instanceIDs)
	}

	var entries []Entry
	if err := q.Order("detected_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("entries in range: %w", err)
	}
	return entries, nil
}
