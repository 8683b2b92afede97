package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListInstancesHandlerFilters(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	_, err := store.Resolve(newTestEvent("cluster-a", "checkout", "shop"))
	require.NoError(t, err)
	_, err = store.Resolve(newTestEvent("cluster-b", "search", "search"))
	require.NoError(t, err)

	server := httptest.NewServer(Router(store))
	defer server.Close()

	resp, err := http.Get(server.URL + "/instances?cluster=cluster-a")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Instances []WorkloadInstance `json:"instances"`
		TotalSize int                `json:"totalSize"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.TotalSize)
	require.Len(t, body.Instances, 1)
	assert.Equal(t, "shop", body.Instances[0].Namespace)
}

func TestGetInstanceHandler(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	instance, err := store.Resolve(newTestEvent("cluster-a", "checkout", "shop"))
	require.NoError(t, err)

	server := httptest.NewServer(Router(store))
	defer server.Close()

	resp, err := http.Get(server.URL + "/instances/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got WorkloadInstance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, instance.ID, got.ID)

	missing, err := http.Get(server.URL + "/instances/999")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(server.URL + "/instances/abc")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}
