// Package api provides the admin HTTP surface: health, stats and metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os/exec"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/zkverify/internal/config"
	"github.com/ashureev/zkverify/internal/server"
	"github.com/ashureev/zkverify/internal/store"
)

const (
	healthCheckTimeout = 5 * time.Second
	statsRecordLimit   = 50
)

// Handler serves the admin endpoints.
type Handler struct {
	repo     store.Repository
	registry *server.Registry
	cfg      *config.Config
}

// NewHandler creates a new admin handler.
func NewHandler(repo store.Repository, registry *server.Registry, cfg *config.Config) *Handler {
	return &Handler{repo: repo, registry: registry, cfg: cfg}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Health returns the health status of the service and its dependencies:
// database reachability and presence of the proving toolchain binaries.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"listener": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "check", "database", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	for _, bin := range []string{h.cfg.NargoBin, h.cfg.ProverBin} {
		if _, err := exec.LookPath(bin); err != nil {
			slog.Error("Health check failed", "check", "toolchain", "binary", bin, "error", err)
			checks["toolchain"] = "missing: " + bin
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}
	if _, ok := checks["toolchain"]; !ok {
		checks["toolchain"] = "ok"
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// Stats returns aggregate proving counts and the most recent audit records.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	succeeded, failed, err := h.repo.CountByOutcome(r.Context())
	if err != nil {
		slog.Error("Stats query failed", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}

	records, err := h.repo.RecentRecords(r.Context(), statsRecordLimit)
	if err != nil {
		slog.Error("Stats query failed", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}

	recent := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		recent = append(recent, map[string]interface{}{
			"session_id":  rec.SessionID,
			"success":     rec.Success,
			"message":     rec.Message,
			"duration_ms": rec.DurationMs,
			"created_at":  rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"active_sessions": h.registry.Count(),
		"proofs": map[string]int64{
			"succeeded": succeeded,
			"failed":    failed,
		},
		"recent": recent,
	})
}

// RegisterRoutes registers the admin routes, including Prometheus metrics.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Handle("/metrics", promhttp.Handler())
}
