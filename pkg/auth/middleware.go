package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware. It is thin and
// delegates token verification to the auth service.
type Middleware struct {
	service *Service
	logger  *zap.Logger
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(service *Service, logger *zap.Logger) *Middleware {
	return &Middleware{
		service: service,
		logger:  logger.Named("auth.middleware"),
	}
}

// RequireAuth validates the bearer token and sets the caller identity in
// the request context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.unauthorized(w, "Authentication required")
			return
		}

		identity, err := m.service.Verify(token)
		if err != nil {
			m.logger.Debug("token rejected", zap.Error(err))
			m.unauthorized(w, "Invalid or expired token")
			return
		}

		next(w, r.WithContext(WithIdentity(r.Context(), identity)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthenticated",
		"message": message,
	})
}
