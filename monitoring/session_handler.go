package monitoring

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"serialbridge/serial"
	"serialbridge/session"
)

// PortsResponse lists the ports available for connection
type PortsResponse struct {
	Ports   []serial.PortDescriptor `json:"ports"`
	Warning string                  `json:"warning,omitempty"`
}

// CommandResponse is returned by connect, disconnect and send
type CommandResponse struct {
	Message string       `json:"message"`
	Session session.Info `json:"session"`
}

// SendRequest carries a payload for the device. The caller supplies any
// terminator.
type SendRequest struct {
	Data string `json:"data"`
}

// SessionHandler exposes the session manager over HTTP
type SessionHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// Ports handles GET /api/ports
func (h *SessionHandler) Ports(w http.ResponseWriter, r *http.Request) {
	ports, err := h.manager.ListPorts(r.Context())
	resp := PortsResponse{Ports: ports}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Session handles GET /api/session
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Info())
}

// Connect handles POST /api/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var cfg session.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg, err := h.manager.Connect(r.Context(), cfg)
	if err != nil {
		h.fail(w, "connect", err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Message: msg, Session: h.manager.Info()})
}

// Disconnect handles POST /api/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	msg, err := h.manager.Disconnect(r.Context())
	if err != nil {
		h.fail(w, "disconnect", err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Message: msg, Session: h.manager.Info()})
}

// Send handles POST /api/send
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Data == "" {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}

	msg, err := h.manager.Send(r.Context(), req.Data)
	if err != nil {
		h.fail(w, "send", err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Message: msg, Session: h.manager.Info()})
}

func (h *SessionHandler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, session.ErrManagerClosed) {
		h.logger.Warn("Session command failed", "op", op, "error", err)
	}
	writeError(w, status, err.Error())
}
