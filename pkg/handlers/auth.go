package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/agents"
	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/auth"
)

// AuthHandler exposes the pre-authentication flows: register, login, and
// the refresh-token rotation.
type AuthHandler struct {
	service *auth.Service
	mw      *auth.Middleware
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *auth.Service, mw *auth.Middleware, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, mw: mw, logger: logger.Named("handlers.auth")}
}

// RegisterRoutes registers the auth routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("POST /auth/logout", h.mw.RequireAuth(h.Logout))
}

type loginRequest struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload agents.RegisterUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_payload", "request body must be JSON")
		return
	}

	pair, err := h.service.Register(r.Context(), &payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, pair)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_payload", "request body must be JSON")
		return
	}

	pair, err := h.service.Login(r.Context(), req.Username, req.Credential)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_payload", "request body must be JSON")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout. It revokes every refresh token of the
// authenticated caller.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		_ = WriteAppError(w, apperrors.Unauthenticated())
		return
	}

	if err := h.service.Logout(r.Context(), identity.Username); err != nil {
		h.writeError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// writeError translates service errors; unexpected ones are logged and
// surfaced opaquely, matching the orchestrator's propagation policy.
// Business failures here are always credential or token problems, so
// they surface as 401 rather than the generic business status.
func (h *AuthHandler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		if appErr.Kind == apperrors.KindBusiness {
			_ = WriteAppErrorStatus(w, http.StatusUnauthorized, appErr)
			return
		}
		_ = WriteAppError(w, appErr)
		return
	}
	h.logger.Error("auth request failed", zap.Error(err))
	_ = WriteAppError(w, apperrors.Internal(nil))
}
