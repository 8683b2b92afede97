package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apptrail-sh/control-plane/pkg/event"
)

// capturePublisher records published notifications synchronously.
type capturePublisher struct {
	published []Notification
}

func (p *capturePublisher) Publish(n Notification) {
	p.published = append(p.published, n)
}

func TestNotifyStarted(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)

	ev := deploymentEvent("1.1.0", "1.0.0", event.PhaseProgressing, nil)
	result, err := engine.Record(db, instance, ev)
	require.NoError(t, err)

	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")

	require.Len(t, publisher.published, 1)
	n := publisher.published[0]
	assert.Equal(t, NotificationStarted, n.Type)
	assert.Equal(t, "checkout", n.Workload)
	assert.Equal(t, "cluster-a", n.Cluster)
	assert.Equal(t, "production", n.Environment)
	assert.Equal(t, "1.1.0", n.CurrentVersion)
	assert.NotEmpty(t, n.ID)
}

func TestNotifySucceeded(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)

	outcome := event.OutcomeSucceeded
	ev := deploymentEvent("1.1.0", "1.0.0", event.PhaseCompleted, &outcome)
	result, err := engine.Record(db, instance, ev)
	require.NoError(t, err)

	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")

	require.Len(t, publisher.published, 1)
	assert.Equal(t, NotificationSucceeded, publisher.published[0].Type)
}

func TestNotifyFailedOnFailedOutcome(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)

	// Failed outcome without a failed phase still classifies as FAILED.
	outcome := event.OutcomeFailed
	ev := deploymentEvent("1.1.0", "1.0.0", event.PhaseCompleted, &outcome)
	ev.Error = &event.ErrorDetail{Message: "probe timeout"}
	result, err := engine.Record(db, instance, ev)
	require.NoError(t, err)

	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")

	require.Len(t, publisher.published, 1)
	assert.Equal(t, NotificationFailed, publisher.published[0].Type)
	assert.Equal(t, "probe timeout", publisher.published[0].ErrorMessage)
}

func TestNotifySuppressesDuplicatePhase(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)

	outcome := event.OutcomeSucceeded
	ev := deploymentEvent("1.1.0", "1.0.0", event.PhaseCompleted, &outcome)
	result, err := engine.Record(db, instance, ev)
	require.NoError(t, err)

	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")
	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")

	assert.Len(t, publisher.published, 1)
}

func TestNotifyGuardSurvivesReload(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)

	outcome := event.OutcomeSucceeded
	ev := deploymentEvent("1.1.0", "1.0.0", event.PhaseCompleted, &outcome)
	result, err := engine.Record(db, instance, ev)
	require.NoError(t, err)
	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")

	// The guard is persisted: a re-delivered event that changes nothing
	// reloads the row and must not re-notify.
	reloaded, err := NewStore(db).FindTransition(instance.ID, "1.1.0", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastNotifiedPhase)
	assert.Equal(t, PhaseCompleted, *reloaded.LastNotifiedPhase)

	engine.Notify(NewStore(db), &RecordResult{Entry: reloaded, Changed: true}, ev, "cluster-a", "production")
	assert.Len(t, publisher.published, 1)
}

func TestNotifySkipsUnchangedResults(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)

	ev := deploymentEvent("1.1.0", "1.0.0", event.PhaseProgressing, nil)
	result, err := engine.Record(db, instance, ev)
	require.NoError(t, err)
	result.Changed = false

	engine.Notify(NewStore(db), result, ev, "cluster-a", "production")
	assert.Empty(t, publisher.published)
}

func TestNotifyPhaseSequence(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	publisher := &capturePublisher{}
	engine := NewEngine(publisher, nil)
	store := NewStore(db)

	started := deploymentEvent("1.1.0", "1.0.0", event.PhaseProgressing, nil)
	result, err := engine.Record(db, instance, started)
	require.NoError(t, err)
	engine.Notify(store, result, started, "cluster-a", "production")

	outcome := event.OutcomeSucceeded
	completed := deploymentEvent("1.1.0", "1.0.0", event.PhaseCompleted, &outcome)
	result, err = engine.Record(db, instance, completed)
	require.NoError(t, err)
	engine.Notify(store, result, completed, "cluster-a", "production")

	require.Len(t, publisher.published, 2)
	assert.Equal(t, NotificationStarted, publisher.published[0].Type)
	assert.Equal(t, NotificationSucceeded, publisher.published[1].Type)
}
