// Package history maintains the deployment version timeline: one row per
// detected version transition of a workload instance, updated in place as
// the deployment progresses through phases. The engine in this package is
// the only writer; duplicated and out-of-order event delivery is expected
// and resolved here.
package history

import "time"

// Phase is the deployment phase stored on a timeline row.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseProgressing Phase = "progressing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Status is the terminal outcome stored on a timeline row.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one detected version transition for a workload instance.
//
// The (workload_instance_id, current_version, previous_version) triple is
// the natural key for duplicate-delivery detection and carries a composite
// unique index; previous_version uses "" rather than NULL for "none" so the
// index arbitrates races on first-seen versions too (SQL treats NULLs as
// distinct, which would disarm the constraint exactly where it matters).
type Entry struct {
	ID                 uint   `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	WorkloadInstanceID uint   `json:"workloadInstanceId" gorm:"column:workload_instance_id;not null;uniqueIndex:idx_history_transition,priority:1;index:idx_history_instance_detected,priority:1"`
	CurrentVersion     string `json:"currentVersion" gorm:"column:current_version;type:varchar(255);not null;uniqueIndex:idx_history_transition,priority:2"`
	PreviousVersion    string `json:"previousVersion,omitempty" gorm:"column:previous_version;type:varchar(255);not null;default:'';uniqueIndex:idx_history_transition,priority:3"`

	DeploymentPhase  *Phase  `json:"deploymentPhase,omitempty" gorm:"column:deployment_phase;type:varchar(16)"`
	DeploymentStatus *Status `json:"deploymentStatus,omitempty" gorm:"column:deployment_status;type:varchar(16)"`

	DeploymentStartedAt       *time.Time `json:"deploymentStartedAt,omitempty" gorm:"column:deployment_started_at"`
	DeploymentCompletedAt     *time.Time `json:"deploymentCompletedAt,omitempty" gorm:"column:deployment_completed_at"`
	DeploymentFailedAt        *time.Time `json:"deploymentFailedAt,omitempty" gorm:"column:deployment_failed_at"`
	DeploymentDurationSeconds *int64     `json:"deploymentDurationSeconds,omitempty" gorm:"column:deployment_duration_seconds"`

	// DetectedAt is the timestamp of the last event observed for this row.
	DetectedAt time.Time `json:"detectedAt" gorm:"column:detected_at;not null;index:idx_history_instance_detected,priority:2"`

	// ReleaseID is a weak back-reference filled in by the release linker.
	ReleaseID *uint `json:"releaseId,omitempty" gorm:"column:release_id;index"`

	// LastNotifiedPhase guards notification dispatch: at most one
	// notification per phase per row.
	LastNotifiedPhase *Phase `json:"lastNotifiedPhase,omitempty" gorm:"column:last_notified_phase;type:varchar(16)"`
}

func (Entry) TableName() string { return "version_history_entries" }
