package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"
)

// AdminHandler serves the operator endpoints that sit beside the socket:
// host session listings and manual result rebuilds.
type AdminHandler struct {
	service *engine.Service
	log     *zap.Logger
}

func NewAdminHandler(service *engine.Service, log *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, log: log}
}

// HostSessions lists a host's sessions with participant counts.
// GET /sessions?hostId=...
func (h *AdminHandler) HostSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	hostID := r.URL.Query().Get("hostId")
	if hostID == "" {
		writeError(w, http.StatusBadRequest, "missing hostId query parameter")
		return
	}
	summaries, err := h.service.HostSessions(r.Context(), hostID)
	if err != nil {
		h.log.Warn("host session listing failed", zap.String("host_id", hostID), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Rebuild regenerates a session's durable result rows, releasing a session
// retained in memory after a failed end-of-session sync.
// POST /sessions/rebuild?sessionId=...
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId query parameter")
		return
	}
	if err := h.service.Rebuild(r.Context(), sessionID); err != nil {
		h.log.Warn("rebuild failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID, "status": "rebuilt"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "unauthorized":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
