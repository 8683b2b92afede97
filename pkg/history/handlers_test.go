package history

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEntriesHandler(t *testing.T) {
	db := setupTestDB(t)
	instance := testInstance(t, db)
	seedEntries(t, db, instance.ID, 3, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	server := httptest.NewServer(Router(NewStore(db)))
	defer server.Close()

	resp, err := http.Get(fmt.Sprintf("%s/instances/%d/entries?pageSize=2", server.URL, instance.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries       []Entry `json:"entries"`
		NextPageToken string  `json:"nextPageToken"`
		TotalSize     int     `json:"totalSize"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.TotalSize)
	assert.Len(t, body.Entries, 2)
	assert.NotEmpty(t, body.NextPageToken)
	assert.Equal(t, "1.2.0", body.Entries[0].CurrentVersion)
}

func TestListEntriesHandlerRejectsBadID(t *testing.T) {
	db := setupTestDB(t)
	server := httptest.NewServer(Router(NewStore(db)))
	defer server.Close()

	resp, err := http.Get(server.URL + "/instances/abc/entries")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
