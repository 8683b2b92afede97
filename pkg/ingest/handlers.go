package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apptrail-sh/control-plane/pkg/event"
	"github.com/apptrail-sh/control-plane/pkg/release"
)

// DeploymentEventHandler handles POST /api/events/v1alpha1/deployments.
// Accepted events return 202; malformed payloads and validation failures
// return 400 so agents drop them instead of retrying forever.
func DeploymentEventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev event.DeploymentEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
			return
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}

		outcome, err := svc.ProcessEvent(&ev)
		if err != nil {
			var verr *event.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to process event: %v", err))
			return
		}

		resp := map[string]any{
			"eventId":  ev.EventID,
			"accepted": true,
		}
		if outcome.Instance != nil {
			resp["instanceId"] = outcome.Instance.ID
		}
		if outcome.Result != nil {
			resp["created"] = outcome.Result.Created
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

// releasePayload is the release webhook body.
type releasePayload struct {
	Repository  string     `json:"repository"`
	TagName     string     `json:"tagName"`
	Name        string     `json:"name,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Author      string     `json:"author,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// ReleaseWebhookHandler handles POST /api/events/v1alpha1/releases. CI
// pipelines push releases here instead of waiting for the background
// poller to discover them.
func ReleaseWebhookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload releasePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
			return
		}
		if strings.TrimSpace(payload.Repository) == "" || strings.TrimSpace(payload.TagName) == "" {
			writeError(w, http.StatusBadRequest, "repository and tagName are required")
			return
		}

		rel := &release.Release{
			Repository: strings.TrimSpace(payload.Repository),
			TagName:    strings.TrimSpace(payload.TagName),
			Name:       payload.Name,
			Notes:      payload.Notes,
			Author:     payload.Author,
			URL:        payload.URL,
		}
		if payload.PublishedAt != nil {
			rel.PublishedAt = payload.PublishedAt
		}

		stored, linked, err := svc.RegisterRelease(rel)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to register release: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"releaseId":     stored.ID,
			"linkedEntries": linked,
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
