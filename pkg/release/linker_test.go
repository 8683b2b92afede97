package release

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apptrail-sh/control-plane/pkg/event"
	"github.com/apptrail-sh/control-plane/pkg/history"
	"github.com/apptrail-sh/control-plane/pkg/registry"
)

const testRepo = "https://github.com/acme/checkout"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, registry.NewStore(db).AutoMigrate())
	require.NoError(t, history.NewStore(db).AutoMigrate())
	require.NoError(t, NewStore(db).AutoMigrate())
	return db
}

// fakeProvider serves releases from a fixed map and can be forced to fail.
type fakeProvider struct {
	releases map[string]*ReleaseInfo // keyed by tag
	err      error
	calls    int
}

func (p *fakeProvider) FetchRelease(ctx context.Context, repositoryURL, version string) (*ReleaseInfo, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	for _, tag := range TagCandidates(version) {
		if info, ok := p.releases[tag]; ok {
			return info, nil
		}
	}
	return nil, nil
}

func seedInstance(t *testing.T, db *gorm.DB, workloadName string) *registry.WorkloadInstance {
	t.Helper()
	phase := event.PhaseProgressing
	instance, err := registry.NewStore(db).Resolve(&event.DeploymentEvent{
		EventID:     "evt-1",
		OccurredAt:  time.Now().UTC(),
		Environment: "production",
		Source:      event.Source{ClusterID: "cluster-a"},
		Workload: event.WorkloadRef{
			Kind:      event.WorkloadKindDeployment,
			Name:      workloadName,
			Namespace: "shop",
		},
		Labels: map[string]string{registry.LabelRepository: testRepo},
		Kind:   event.KindDeployment,
		Phase:  &phase,
	})
	require.NoError(t, err)
	return instance
}

func seedEntry(t *testing.T, db *gorm.DB, instanceID uint, version string) *history.Entry {
	t.Helper()
	entry := &history.Entry{
		WorkloadInstanceID: instanceID,
		CurrentVersion:     version,
		DetectedAt:         time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, history.NewStore(db).Create(entry))
	return entry
}

func TestTryLinkLocalHit(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	entry := seedEntry(t, db, instance.ID, "1.4.2")

	// Release is stored under the v-prefixed tag.
	_, err := NewStore(db).Upsert(&Release{Repository: testRepo, TagName: "v1.4.2"})
	require.NoError(t, err)

	linker := NewLinker(db, &fakeProvider{}, nil, nil)
	linked, err := linker.TryLinkLocal(db, entry, testRepo)
	require.NoError(t, err)
	assert.True(t, linked)
	require.NotNil(t, entry.ReleaseID)
}

func TestTryLinkLocalMissLeavesEntryUnlinked(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	entry := seedEntry(t, db, instance.ID, "1.4.2")

	linker := NewLinker(db, &fakeProvider{}, nil, nil)
	linked, err := linker.TryLinkLocal(db, entry, testRepo)
	require.NoError(t, err)
	assert.False(t, linked)
	assert.Nil(t, entry.ReleaseID)
}

func TestPollLinksFromProvider(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	entry := seedEntry(t, db, instance.ID, "1.4.2")

	publishedAt := time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)
	provider := &fakeProvider{releases: map[string]*ReleaseInfo{
		"v1.4.2": {
			TagName:     "v1.4.2",
			Name:        "Checkout 1.4.2",
			Notes:       "bugfixes",
			Author:      "release-bot",
			URL:         testRepo + "/releases/tag/v1.4.2",
			PublishedAt: &publishedAt,
		},
	}}

	linker := NewLinker(db, provider, nil, nil)
	linker.pollOnce(context.Background())

	var reloaded history.Entry
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	require.NotNil(t, reloaded.ReleaseID)

	rel, err := NewStore(db).FindByTag(testRepo, "v1.4.2")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, *reloaded.ReleaseID, rel.ID)
	assert.Equal(t, "Checkout 1.4.2", rel.Name)

	// A successful link clears any ledger entry for the pair.
	var attempts int64
	require.NoError(t, db.Model(&FetchAttempt{}).Count(&attempts).Error)
	assert.EqualValues(t, 0, attempts)
}

func TestPollLinksSiblingEntries(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	first := seedEntry(t, db, instance.ID, "1.4.2")
	sibling := seedEntry(t, db, instance.ID, "v1.4.2")

	provider := &fakeProvider{releases: map[string]*ReleaseInfo{
		"v1.4.2": {TagName: "v1.4.2"},
	}}

	linker := NewLinker(db, provider, nil, nil)
	linker.pollOnce(context.Background())

	for _, id := range []uint{first.ID, sibling.ID} {
		var reloaded history.Entry
		require.NoError(t, db.First(&reloaded, id).Error)
		assert.NotNil(t, reloaded.ReleaseID, "entry %d should be linked", id)
	}
}

func TestPollMissRecordsAttempt(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	entry := seedEntry(t, db, instance.ID, "9.9.9")

	provider := &fakeProvider{}
	linker := NewLinker(db, provider, nil, nil)
	linker.pollOnce(context.Background())

	var reloaded history.Entry
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	assert.Nil(t, reloaded.ReleaseID)

	attempt := &FetchAttempt{}
	require.NoError(t, db.Where("repository = ? AND version = ?", testRepo, "9.9.9").First(attempt).Error)

	// Within the backoff window the pair is not re-queried.
	linker.pollOnce(context.Background())
	assert.Equal(t, 1, provider.calls)
}

func TestPollBackoffExpires(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	seedEntry(t, db, instance.ID, "9.9.9")

	provider := &fakeProvider{}
	linker := NewLinker(db, provider, nil, nil)

	// A stale ledger entry no longer suppresses the pair.
	stale := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, NewStore(db).RecordAttempt(testRepo, "9.9.9", stale))

	linker.pollOnce(context.Background())
	assert.Equal(t, 1, provider.calls)
}

func TestPollProviderFailureIsIsolated(t *testing.T) {
	db := setupTestDB(t)
	instance := seedInstance(t, db, "checkout")
	entry := seedEntry(t, db, instance.ID, "1.4.2")

	provider := &fakeProvider{err: errors.New("rate limited")}
	linker := NewLinker(db, provider, nil, nil)
	linker.pollOnce(context.Background())

	// The failure is treated as a miss: entry unlinked, ledger written.
	var reloaded history.Entry
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	assert.Nil(t, reloaded.ReleaseID)

	var attempts int64
	require.NoError(t, db.Model(&FetchAttempt{}).Count(&attempts).Error)
	assert.EqualValues(t, 1, attempts)
}

func TestSweepDeletesStaleAttempts(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	require.NoError(t, store.RecordAttempt(testRepo, "old", time.Now().UTC().Add(-40*24*time.Hour)))
	require.NoError(t, store.RecordAttempt(testRepo, "fresh", time.Now().UTC()))

	deleted, err := store.SweepAttempts(time.Now().UTC().Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, db.Model(&FetchAttempt{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
}

func TestUpsertRefreshesExistingRelease(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	first, err := store.Upsert(&Release{Repository: testRepo, TagName: "v1.0.0", Name: "initial"})
	require.NoError(t, err)

	second, err := store.Upsert(&Release{Repository: testRepo, TagName: "v1.0.0", Name: "renamed"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "renamed", second.Name)

	var count int64
	require.NoError(t, db.Model(&Release{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
