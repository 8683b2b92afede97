package ingest

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the event ingestion API.
func Router(svc *Service) chi.Router {
	r := chi.NewRouter()
	r.Post("/deployments", DeploymentEventHandler(svc))
	r.Post("/releases", ReleaseWebhookHandler(svc))
	return r
}
