package history

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/apptrail-sh/control-plane/pkg/event"
	"github.com/apptrail-sh/control-plane/pkg/registry"
)

// Engine applies deployment events to the version timeline. Record runs
// inside the caller's ingestion transaction; Notify runs after commit.
type Engine struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewEngine creates a new history engine. publisher may be nil, in which
// case notifications are dropped.
func NewEngine(publisher Publisher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{publisher: publisher, logger: logger}
}

// RecordResult describes what Record did with an event.
type RecordResult struct {
	Entry   *Entry
	Created bool // a new timeline row was inserted
	Changed bool // row state changed (false for no-op duplicates)
}

// Record upserts the timeline row for a deployment event.
//
// Same-version events update the in-flight row's phase state in place; a
// new version creates a row keyed by (instance, current, previous). Both
// paths tolerate duplicate and concurrent delivery: an exact-key pre-check
// catches re-delivery before the insert, and a unique-index violation on
// the insert is recovered by re-reading the row the winner created and
// falling back to the update path. The race is never surfaced to callers.
func (e *Engine) Record(tx *gorm.DB, instance *registry.WorkloadInstance, ev *event.DeploymentEvent) (*RecordResult, error) {
	if ev.Revision == nil {
		return &RecordResult{}, nil
	}

	current := strings.TrimSpace(ev.Revision.Current)
	previous := normalizePrevious(ev.Revision.Previous, current)
	store := NewStore(tx)

	latest, err := store.LatestForInstance(instance.ID)
	if err != nil {
		return nil, err
	}

	// Same-version path: phase/status progression of the in-flight
	// deployment, not a new version.
	if latest != nil && latest.CurrentVersion == current {
		changed, err := e.applyUpdate(store, latest, ev)
		if err != nil {
			return nil, err
		}
		return &RecordResult{Entry: latest, Changed: changed}, nil
	}

	// New-version path. An event without a previous revision inherits it
	// from the latest known version.
	if previous == "" && latest != nil {
		previous = normalizePrevious(latest.CurrentVersion, current)
	}

	// Duplicate-race pre-check: the "first" event for this version may
	// already have landed via a concurrent or re-delivered copy.
	existing, err := store.FindTransition(instance.ID, current, previous)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		changed, err := e.applyUpdate(store, existing, ev)
		if err != nil {
			return nil, err
		}
		return &RecordResult{Entry: existing, Changed: changed}, nil
	}

	entry := &Entry{
		WorkloadInstanceID: instance.ID,
		CurrentVersion:     current,
		PreviousVersion:    previous,
		DetectedAt:         ev.OccurredAt.UTC(),
	}
	applyEvent(entry, ev)

	// The insert runs in a nested transaction (a savepoint when the caller
	// is already transactional). On PostgreSQL a unique violation aborts
	// the surrounding transaction, which would doom the recovery re-read
	// below; the savepoint confines the abort to the insert itself.
	createErr := tx.Transaction(func(inner *gorm.DB) error {
		return NewStore(inner).Create(entry)
	})
	if createErr != nil {
		// Unique-index race: another delivery inserted the row between the
		// pre-check and our insert. Its row is authoritative; apply this
		// event to it as an update.
		raced, lookupErr := store.FindTransition(instance.ID, current, previous)
		if lookupErr == nil && raced != nil {
			e.logger.Debug("recovered duplicate-insert race",
				"instanceID", instance.ID, "version", current)
			changed, applyErr := e.applyUpdate(store, raced, ev)
			if applyErr != nil {
				return nil, applyErr
			}
			return &RecordResult{Entry: raced, Changed: changed}, nil
		}
		return nil, fmt.Errorf("create history entry: %w", createErr)
	}

	if err := registry.NewStore(tx).MarkVersionDetected(instance.ID, current, entry.DetectedAt); err != nil {
		return nil, err
	}

	return &RecordResult{Entry: entry, Created: true, Changed: true}, nil
}

// applyUpdate applies an event to an existing row. Returns false for true
// no-op duplicates, which are skipped without a write.
func (e *Engine) applyUpdate(store *Store, entry *Entry, ev *event.DeploymentEvent) (bool, error) {
	phase := eventPhase(ev)
	status := eventStatus(ev)

	if !phaseChanged(entry, phase) && !statusChanged(entry, status) {
		e.logger.Debug("duplicate event skipped",
			"instanceID", entry.WorkloadInstanceID, "version", entry.CurrentVersion)
		return false, nil
	}

	entry.DetectedAt = ev.OccurredAt.UTC()
	applyEvent(entry, ev)
	if err := store.Save(entry); err != nil {
		return false, err
	}
	return true, nil
}

// applyEvent derives phase state and timestamps onto an entry from an
// event. The entry's DetectedAt must already hold the event timestamp.
func applyEvent(entry *Entry, ev *event.DeploymentEvent) {
	phase := eventPhase(ev)
	status := eventStatus(ev)

	if status != nil {
		entry.DeploymentStatus = status
	}

	if phase == nil {
		return
	}
	entry.DeploymentPhase = phase
	detectedAt := entry.DetectedAt

	switch *phase {
	case PhasePending:
		// No timestamp effect.
	case PhaseProgressing:
		// First observation wins.
		if entry.DeploymentStartedAt == nil {
			t := detectedAt
			entry.DeploymentStartedAt = &t
		}
		// A re-deploy supersedes a prior terminal status.
		if status == nil {
			entry.DeploymentStatus = nil
		}
	case PhaseCompleted:
		t := detectedAt
		entry.DeploymentCompletedAt = &t
		deriveDuration(entry, detectedAt)
	case PhaseFailed:
		t := detectedAt
		entry.DeploymentFailedAt = &t
		deriveDuration(entry, detectedAt)
	}
}

func deriveDuration(entry *Entry, endedAt time.Time) {
	if entry.DeploymentDurationSeconds != nil || entry.DeploymentStartedAt == nil {
		return
	}
	seconds := int64(endedAt.Sub(*entry.DeploymentStartedAt).Seconds())
	entry.DeploymentDurationSeconds = &seconds
}

// normalizePrevious trims the previous version and collapses it to "" when
// blank or equal to the current version.
func normalizePrevious(previous, current string) string {
	previous = strings.TrimSpace(previous)
	if previous == current {
		return ""
	}
	return previous
}

func eventPhase(ev *event.DeploymentEvent) *Phase {
	if ev.Phase == nil {
		return nil
	}
	var p Phase
	switch *ev.Phase {
	case event.PhasePending:
		p = PhasePending
	case event.PhaseProgressing:
		p = PhaseProgressing
	case event.PhaseCompleted:
		p = PhaseCompleted
	case event.PhaseFailed:
		p = PhaseFailed
	default:
		return nil
	}
	return &p
}

func eventStatus(ev *event.DeploymentEvent) *Status {
	if ev.Outcome == nil {
		return nil
	}
	var s Status
	switch *ev.Outcome {
	case event.OutcomeSucceeded:
		s = StatusSuccess
	case event.OutcomeFailed:
		s = StatusFailed
	default:
		return nil
	}
	return &s
}

func phaseChanged(entry *Entry, phase *Phase) bool {
	if phase == nil {
		return false
	}
	return entry.DeploymentPhase == nil || *entry.DeploymentPhase != *phase
}

func statusChanged(entry *Entry, status *Status) bool {
	if status == nil {
		return false
	}
	return entry.DeploymentStatus == nil || *entry.DeploymentStatus != *status
}
