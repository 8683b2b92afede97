package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedEntries(t *testing.T, db *gorm.DB, instanceID uint, n int, base time.Time) {
	t.Helper()
	store := NewStore(db)
	for i := 0; i < n; i++ {
		previous := ""
		if i > 0 {
			previous = fmt.Sprintf("1.%d.0", i-1)
		}
		require.NoError(t, store.Create(&Entry{
			WorkloadInstanceID: instanceID,
			CurrentVersion:     fmt.Sprintf("1.%d.0", i),
			PreviousVersion:    previous,
			DetectedAt:         base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestListForInstancePaginates(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedEntries(t, db, instance.ID, 5, base)

	store := NewStore(db)

	page1, token, total, err := store.ListForInstance(instance.ID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.NotEmpty(t, token)
	// Newest first.
	assert.Equal(t, "1.4.0", page1[0].CurrentVersion)
	assert.Equal(t, "1.3.0", page1[1].CurrentVersion)

	page2, token, _, err := store.ListForInstance(instance.ID, 2, token)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "1.2.0", page2[0].CurrentVersion)
	assert.Equal(t, "1.1.0", page2[1].CurrentVersion)

	page3, token, _, err := store.ListForInstance(instance.ID, 2, token)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "1.0.0", page3[0].CurrentVersion)
	assert.Empty(t, token)
}

func TestListForInstanceRejectsBadToken(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)

	_, _, _, err := NewStore(db).ListForInstance(instance.ID, 10, "not-a-timestamp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page token")
}

func TestDetectedBetween(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedEntries(t, db, instance.ID, 5, base)

	store := NewStore(db)

	all, err := store.DetectedBetween(base, base.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	// Chronological order.
	assert.Equal(t, "1.0.0", all[0].CurrentVersion)
	assert.Equal(t, "1.4.0", all[4].CurrentVersion)

	window, err := store.DetectedBetween(base.Add(time.Minute), base.Add(3*time.Minute), nil)
	require.NoError(t, err)
	assert.Len(t, window, 3)

	other, err := store.DetectedBetween(base, base.Add(time.Hour), []uint{instance.ID + 100})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFindTransitionUsesExactKey(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	store := NewStore(db)

	require.NoError(t, store.Create(&Entry{
		WorkloadInstanceID: instance.ID,
		CurrentVersion:     "1.1.0",
		PreviousVersion:    "1.0.0",
		DetectedAt:         time.Now().UTC(),
	}))

	found, err := store.FindTransition(instance.ID, "1.1.0", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, found)

	miss, err := store.FindTransition(instance.ID, "1.1.0", "")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestTransitionKeyUniqueness(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	store := NewStore(db)

	entry := &Entry{
		WorkloadInstanceID: instance.ID,
		CurrentVersion:     "1.1.0",
		PreviousVersion:    "",
		DetectedAt:         time.Now().UTC(),
	}
	require.NoError(t, store.Create(entry))

	// The empty-string sentinel participates in the unique index, so a
	// second first-seen row for the same version is rejected.
	duplicate := &Entry{
		WorkloadInstanceID: instance.ID,
		CurrentVersion:     "1.1.0",
		PreviousVersion:    "",
		DetectedAt:         time.Now().UTC(),
	}
	require.Error(t, store.Create(duplicate))
}
