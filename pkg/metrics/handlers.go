package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultReportWindow = 30 * 24 * time.Hour

// parseRange reads start/end query params (RFC3339), defaulting to the
// trailing thirty days.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
		}
		end = t
	}

	start := end.Add(-defaultReportWindow)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end precedes start")
	}
	return start, end, nil
}

func filterFromRequest(r *http.Request, start, end time.Time) ReportFilter {
	return ReportFilter{
		Start:        start,
		End:          end,
		TeamName:     r.URL.Query().Get("team"),
		WorkloadName: r.URL.Query().Get("workload"),
		Environment:  r.URL.Query().Get("environment"),
		ClusterName:  r.URL.Query().Get("cluster"),
	}
}

// ReportHandler handles GET /api/metrics/v1alpha1/report
// Query params: start, end, team, workload, environment, cluster
func ReportHandler(source *Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := parseRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		entries, err := source.Entries(filterFromRequest(r, start, end))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load timeline: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, ComputeReport(entries, start, end))
	}
}

// RankingsHandler handles GET /api/metrics/v1alpha1/rankings
// Query params: groupBy (team|workload, default team) plus report params.
func RankingsHandler(source *Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := parseRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		groupBy := r.URL.Query().Get("groupBy")
		if groupBy == "" {
			groupBy = "team"
		}

		groups, err := source.GroupedEntries(filterFromRequest(r, start, end), groupBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to group timeline: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"groupBy":  groupBy,
			"rankings": Rank(groups, start, end),
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
