// Package handler provides HTTP request handlers for the product API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Notifier receives an event after every successful mutation.
type Notifier interface {
	Broadcast(event model.ChangeEvent)
}

// responder writes JSON responses and logs encoding failures.
type responder struct {
	logger *zap.Logger
}

func (rs responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (rs responder) writeError(w http.ResponseWriter, status int, message string) {
	rs.writeJSON(w, status, model.ErrorResponse{
		Code:    status,
		Message: message,
	})
}

// decodeBody decodes a size-limited JSON request body into dst.
func (rs responder) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rs.logger.Warn("invalid request body", zap.Error(err))
		rs.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// validate reports a 400 when p is not acceptable.
func (rs responder) validate(w http.ResponseWriter, p *model.Product) bool {
	if err := p.Validate(); err != nil {
		rs.logger.Warn("validation failed", zap.Error(err))
		rs.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	ready func(ctx context.Context) error
	responder
}

// NewHealthHandler creates a HealthHandler. ready may be nil.
func NewHealthHandler(ready func(ctx context.Context) error, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{ready: ready, responder: responder{logger: logger}}
}

// RegisterRoutes registers /health and /ready.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(HealthResponse{
		Status:  "healthy",
		Version: Version,
	}))
}

// ReadyCheck handles GET /ready.
func (h *HealthHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready", Error: err.Error()})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

func notify(n Notifier, event model.ChangeEvent) {
	if n != nil {
		n.Broadcast(event)
	}
}
