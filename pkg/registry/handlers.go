package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListInstancesHandler handles GET /api/registry/v1alpha1/instances
// Query params: cluster, environment, team, namespace
func ListInstancesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := InstanceFilter{
			ClusterName: r.URL.Query().Get("cluster"),
			Environment: r.URL.Query().Get("environment"),
			TeamName:    r.URL.Query().Get("team"),
			Namespace:   r.URL.Query().Get("namespace"),
		}

		instances, err := store.ListInstances(filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list instances: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"instances": instances,
			"totalSize": len(instances),
		})
	}
}

// GetInstanceHandler handles GET /api/registry/v1alpha1/instances/{instanceId}
func GetInstanceHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "instanceId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid instance ID")
			return
		}

		instance, err := store.GetInstance(uint(id))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get instance: %v", err))
			return
		}
		if instance == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("instance %d not found", id))
			return
		}

		writeJSON(w, http.StatusOK, instance)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
