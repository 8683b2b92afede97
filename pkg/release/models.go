// Package release links version timeline rows to upstream release metadata.
// Releases arrive from two directions: a provider webhook pushes them in,
// and a background linker pulls them for rows that are still unlinked,
// backing off on misses via a negative-cache attempt ledger.
package release

import "time"

// Release is upstream release metadata, keyed by (repository, tagName).
// Rows are immutable except for refresh-on-upsert.
type Release struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Repository  string     `json:"repository" gorm:"column:repository;type:varchar(512);not null;uniqueIndex:idx_releases_repo_tag,priority:1"`
	TagName     string     `json:"tagName" gorm:"column:tag_name;type:varchar(255);not null;uniqueIndex:idx_releases_repo_tag,priority:2"`
	Name        string     `json:"name" gorm:"column:name;type:varchar(255)"`
	Notes       string     `json:"notes" gorm:"column:notes;type:text"`
	Author      string     `json:"author" gorm:"column:author;type:varchar(255)"`
	URL         string     `json:"url" gorm:"column:url;type:varchar(512)"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" gorm:"column:published_at"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"column:updated_at"`
}

func (Release) TableName() string { return "releases" }

// FetchAttempt is the attempt ledger: the last failed lookup per
// (repository, version). It is a negative cache only; an entry makes the
// pair ineligible for re-query until the backoff window elapses, and it is
// deleted as soon as a release is linked.
type FetchAttempt struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Repository  string    `json:"repository" gorm:"column:repository;type:varchar(512);not null;uniqueIndex:idx_attempts_repo_version,priority:1"`
	Version     string    `json:"version" gorm:"column:version;type:varchar(255);not null;uniqueIndex:idx_attempts_repo_version,priority:2"`
	AttemptedAt time.Time `json:"attemptedAt" gorm:"column:attempted_at;not null;index"`
}

func (FetchAttempt) TableName() string { return "release_fetch_attempts" }
