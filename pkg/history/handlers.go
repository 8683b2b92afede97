package history

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListEntriesHandler handles
// GET /api/history/v1alpha1/instances/{instanceId}/entries
// Query params: pageSize, pageToken
func ListEntriesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "instanceId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid instance ID")
			return
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		entries, nextToken, total, err := store.ListForInstance(uint(id), pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list entries: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"entries":       entries,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
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
