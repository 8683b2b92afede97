package registry

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the workload registry API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/instances", ListInstancesHandler(store))
	r.Get("/instances/{instanceId}", GetInstanceHandler(store))
	return r
}
