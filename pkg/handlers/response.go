package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteAppError maps a typed error onto the HTTP surface. The JSON body
// mirrors the error taxonomy one-to-one so remote callers see the same
// error kinds and codes the console prints.
func WriteAppError(w http.ResponseWriter, err *apperrors.Error) error {
	return WriteAppErrorStatus(w, statusFor(err.Kind), err)
}

// WriteAppErrorStatus writes the taxonomy envelope with an explicit
// status code.
func WriteAppErrorStatus(w http.ResponseWriter, statusCode int, err *apperrors.Error) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   err.Kind.String(),
		"code":    err.Code,
		"message": err.Message,
	})
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindSubscriptionRequired:
		return http.StatusPaymentRequired
	case apperrors.KindUnknownCapability:
		return http.StatusNotFound
	case apperrors.KindBusiness:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
