package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/auth"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
)

// CapabilityHandler is the remote entry point's thin translation layer:
// request in, (capability, payload, caller) out, orchestrator invoked.
// It contains no business logic of its own so the remote surface cannot
// diverge from the console.
type CapabilityHandler struct {
	orch   *orchestrator.Orchestrator
	mw     *auth.Middleware
	logger *zap.Logger
}

// NewCapabilityHandler creates a new CapabilityHandler.
func NewCapabilityHandler(orch *orchestrator.Orchestrator, mw *auth.Middleware, logger *zap.Logger) *CapabilityHandler {
	return &CapabilityHandler{orch: orch, mw: mw, logger: logger.Named("handlers.capabilities")}
}

// RegisterRoutes registers the capability routes on the given mux.
func (h *CapabilityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/capabilities", h.mw.RequireAuth(h.List))
	mux.HandleFunc("POST /api/capabilities/{name}", h.mw.RequireAuth(h.Invoke))
}

// List handles GET /api/capabilities.
func (h *CapabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"capabilities": h.orch.Capabilities(),
	})
}

// Invoke handles POST /api/capabilities/{name}. The request body is the
// capability payload verbatim; an empty body means an empty payload.
func (h *CapabilityHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		_ = WriteAppError(w, apperrors.Unauthenticated())
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_payload", "failed to read request body")
		return
	}

	name := r.PathValue("name")
	outcome := h.orch.Process(r.Context(), name, json.RawMessage(body), identity)
	if !outcome.OK() {
		_ = WriteAppError(w, outcome.Err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"data": outcome.Data})
}
