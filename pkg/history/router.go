package history

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the version timeline API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/instances/{instanceId}/entries", ListEntriesHandler(store))
	return r
}
