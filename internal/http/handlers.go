package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/lookup"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// DashboardView is the part of dashboard.View the status server uses.
type DashboardView interface {
	Snapshot() dashboard.Snapshot
	ManualRefresh(ctx context.Context) error
}

// LookupPanel is the part of lookup.Panel the status server uses.
type LookupPanel interface {
	Submit(ctx context.Context, identifier string) (models.WeatherRecord, error)
}

// HealthConfig holds the thresholds for reporting a degraded backend.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// MinSamples keeps a single failed call from flipping health.
	MinSamples int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	view         DashboardView
	panel        LookupPanel
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil healthConfig disables the degraded check.
func NewHandler(view DashboardView, panel LookupPanel, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{view: view, panel: panel, healthConfig: healthConfig, logger: logger}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.view.Snapshot()
	result := h.computeHealthStatus(snap)

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-dashboard",
		"mounted":   snap.Mounted,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if !snap.LastUpdate.IsZero() {
		resp["lastUpdate"] = snap.LastUpdate.UTC().Format(time.RFC3339)
	}
	if since := lifecycle.ShutdownSince(); !since.IsZero() {
		resp["shuttingDownSince"] = since.UTC().Format(time.RFC3339)
	}
	if h.healthConfig != nil {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		resp["backend"] = map[string]int{
			"errorsInWindow": errs,
			"callsInWindow":  total,
			"deniedInWindow": traffic.DenialCount(h.healthConfig.DegradedWindow),
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates in priority order:
// shutting-down > loading > degraded > ok.
func (h *Handler) computeHealthStatus(snap dashboard.Snapshot) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if snap.Loading {
		return healthResult{"loading", http.StatusOK, "first_refresh_pending"}
	}
	if cfg := h.healthConfig; cfg != nil && cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(cfg.DegradedWindow)
		if total > 0 && total >= cfg.MinSamples && errs*100 >= cfg.DegradedErrorPct*total {
			return healthResult{"degraded", http.StatusOK, "backend_error_rate"}
		}
	}
	return healthResult{"ok", http.StatusOK, ""}
}

// GetDashboard handles GET /dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view.Snapshot())
}

// PostRefresh handles POST /dashboard/refresh. The refresh runs to completion
// before the response is written.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.view.ManualRefresh(r.Context())
	switch {
	case errors.Is(err, dashboard.ErrRefreshDisabled):
		writeError(w, r, http.StatusConflict, "REFRESH_DISABLED", "Refresh is disabled while the dashboard is loading")
		return
	case errors.Is(err, dashboard.ErrNotMounted):
		writeError(w, r, http.StatusServiceUnavailable, "NOT_MOUNTED", "Dashboard is not running")
		return
	case err != nil:
		requestLogger(r).Debug("manual refresh", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Refresh failed")
		return
	}
	writeJSON(w, http.StatusAccepted, h.view.Snapshot())
}

// GetLookup handles GET /lookup/{id}.
func (h *Handler) GetLookup(w http.ResponseWriter, r *http.Request) {
	rec, err := h.panel.Submit(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, lookup.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", lookup.MessageValidation)
		return
	case err != nil:
		requestLogger(r).Debug("lookup failed", zap.Error(err))
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", lookup.MessageNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

func requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
