package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/tinoosan/modsync/api/v1"
	"github.com/tinoosan/modsync/internal/auth"
	"github.com/tinoosan/modsync/internal/events"
	"github.com/tinoosan/modsync/internal/metrics"
	"github.com/tinoosan/modsync/internal/repo"
	"github.com/tinoosan/modsync/internal/service"
)

// Deps are the components the status server reads from. Outcomes and Bus
// are optional.
type Deps struct {
	Sync     service.Sync
	Outcomes repo.OutcomeReader
	Bus      *events.Bus
	// Token protects everything but /healthz when set.
	Token string
}

// New sets up the status server routes and required middleware.
func New(logger *slog.Logger, d Deps) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	metrics.Register()
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	status := v1.NewStatusHandler(logger, d.Sync, d.Outcomes, d.Bus)

	r.Use(v1.RequestID)
	r.Use(status.Log)
	r.Use(auth.Middleware(d.Token))

	api := r.PathPrefix("/v1").Subrouter()

	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/games", status.GetGames)
	get.HandleFunc("/games/{id}", status.GetGame)
	get.HandleFunc("/events", status.Events)

	outcomes := api.Methods("GET").Subrouter()
	outcomes.HandleFunc("/outcomes", status.GetOutcomes)
	outcomes.Use(v1.MiddlewareOutcomeQuery)

	return r
}
