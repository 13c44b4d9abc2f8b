package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"serialbridge/session"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string       `json:"status"`
	InstanceID string       `json:"instance_id"`
	Version    string       `json:"version"`
	UptimeSec  int64        `json:"uptime_sec"`
	Session    session.Info `json:"session"`
}

// HealthHandler creates an HTTP handler for health checks
type HealthHandler struct {
	instanceID string
	version    string
	startTime  time.Time
	manager    *session.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(instanceID, version string, manager *session.Manager) *HealthHandler {
	return &HealthHandler{
		instanceID: instanceID,
		version:    version,
		startTime:  time.Now(),
		manager:    manager,
	}
}

// ServeHTTP handles the /health endpoint. A faulted session reports degraded.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := h.manager.Info()

	status := "healthy"
	if info.State == session.StateFaulted {
		status = "degraded"
	}

	response := HealthResponse{
		Status:     status,
		InstanceID: h.instanceID,
		Version:    h.version,
		UptimeSec:  int64(time.Since(h.startTime).Seconds()),
		Session:    info,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
