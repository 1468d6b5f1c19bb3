package handler

import (
	"net/http"

	"github.com/avasquez/leadqual/internal/infra/observability"
	"github.com/avasquez/leadqual/internal/port"
	"github.com/avasquez/leadqual/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.Customers, qualifier *service.Qualifier, store port.CustomerStore, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/customers", createCustomerHandler(svc, logger))
		r.Get("/customers", listCustomersHandler(svc, logger))

		// Static segment registered alongside {id}; chi resolves the
		// literal path first, so "export" never parses as an id.
		r.Get("/customers/export/csv", exportCustomersHandler(svc, logger))

		r.Get("/customers/{id}", getCustomerHandler(svc, logger))
		r.Put("/customers/{id}", updateCustomerHandler(svc, logger))
		r.Delete("/customers/{id}", deleteCustomerHandler(svc, logger))
		r.Get("/customers/{id}/lead-time", leadTimeHandler(svc, logger))
		r.Post("/customers/{id}/qualify", qualifyCustomerHandler(qualifier, logger))

		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics, logger))
	})

	return r
}

func pipelineMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetPipelineSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
