package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// RouterOptions tunes the /dashboard and /lookup subrouters.
type RouterOptions struct {
	// Limiter may be nil to disable rate limiting.
	Limiter *rate.Limiter
	// RequestTimeout bounds backend work started by a request. Zero disables it.
	RequestTimeout time.Duration
}

// NewRouter wires the status server routes.
func NewRouter(h *Handler, opts RouterOptions, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	dashboardRouter := router.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.Use(RateLimitMiddleware(opts.Limiter))
	dashboardRouter.Use(TimeoutMiddleware(opts.RequestTimeout))
	dashboardRouter.HandleFunc("", h.GetDashboard).Methods("GET")
	dashboardRouter.HandleFunc("/refresh", h.PostRefresh).Methods("POST")

	lookupRouter := router.PathPrefix("/lookup").Subrouter()
	lookupRouter.Use(RateLimitMiddleware(opts.Limiter))
	lookupRouter.Use(TimeoutMiddleware(opts.RequestTimeout))
	lookupRouter.HandleFunc("/{id}", h.GetLookup).Methods("GET")

	return router
}
