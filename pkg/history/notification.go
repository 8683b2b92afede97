package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/apptrail-sh/control-plane/pkg/event"
)

// NotificationType classifies a deployment transition for downstream
// channels.
type NotificationType string

const (
	NotificationStarted   NotificationType = "STARTED"
	NotificationSucceeded NotificationType = "SUCCEEDED"
	NotificationFailed    NotificationType = "FAILED"
)

// Notification is the dispatch payload derived from a timeline transition.
type Notification struct {
	ID                 string           `json:"id"`
	Type               NotificationType `json:"type"`
	WorkloadInstanceID uint             `json:"workloadInstanceId"`
	Workload           string           `json:"workload"`
	Namespace          string           `json:"namespace"`
	Cluster            string           `json:"cluster"`
	Environment        string           `json:"environment"`
	CurrentVersion     string           `json:"currentVersion"`
	PreviousVersion    string           `json:"previousVersion,omitempty"`
	Phase              Phase            `json:"phase,omitempty"`
	OccurredAt         time.Time        `json:"occurredAt"`
	ErrorMessage       string           `json:"errorMessage,omitempty"`
}

// Publisher dispatches notifications. Implementations must not block the
// caller on delivery; the notify subsystem satisfies this interface.
// Defined here, at the consumer, to avoid a dependency cycle.
type Publisher interface {
	Publish(n Notification)
}

// Notify derives a notification from a recorded transition and dispatches
// it at most once per phase per row.
//
// Ordering is publish-then-mark: a crash between the two steps causes a
// duplicate notification on retry. That at-least-once behavior is accepted
// rather than paying for transactional outbox coordination.
func (e *Engine) Notify(store *Store, result *RecordResult, ev *event.DeploymentEvent, cluster, environment string) {
	if e.publisher == nil || result == nil || result.Entry == nil || !result.Changed {
		return
	}
	entry := result.Entry

	typ := notificationTypeFor(eventPhase(ev), eventStatus(ev))
	if typ == "" {
		return
	}

	guardPhase := entry.DeploymentPhase
	if guardPhase == nil && typ == NotificationFailed {
		p := PhaseFailed
		guardPhase = &p
	}
	if guardPhase == nil {
		return
	}
	if entry.LastNotifiedPhase != nil && *entry.LastNotifiedPhase == *guardPhase {
		return // already notified for this phase
	}

	e.publisher.Publish(Notification{
		ID:                 uuid.New().String(),
		Type:               typ,
		WorkloadInstanceID: entry.WorkloadInstanceID,
		Workload:           ev.Workload.Name,
		Namespace:          ev.Workload.Namespace,
		Cluster:            cluster,
		Environment:        environment,
		CurrentVersion:     entry.CurrentVersion,
		PreviousVersion:    entry.PreviousVersion,
		Phase:              *guardPhase,
		OccurredAt:         entry.DetectedAt,
		ErrorMessage:       ev.ErrorMessage(),
	})

	if err := store.MarkNotified(entry.ID, *guardPhase); err != nil {
		e.logger.Error("failed to persist notification guard",
			"entryID", entry.ID, "error", err)
		return
	}
	entry.LastNotifiedPhase = guardPhase
}

// notificationTypeFor maps a transition to a notification type. Either a
// failed phase or a failed outcome is enough to classify as FAILED.
func notificationTypeFor(phase *Phase, status *Status) NotificationType {
	if (phase != nil && *phase == PhaseFailed) || (status != nil && *status == StatusFailed) {
		return NotificationFailed
	}
	if phase != nil && *phase == PhaseCompleted && status != nil && *status == StatusSuccess {
		return NotificationSucceeded
	}
	if phase != nil && *phase == PhaseProgressing {
		return NotificationStarted
	}
	return ""
}
