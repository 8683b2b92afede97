package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the metrics API. middlewares (typically
// the response cache) wrap both endpoints.
func Router(source *Source, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Get("/report", ReportHandler(source))
	r.Get("/rankings", RankingsHandler(source))
	return r
}
