package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"careerprep/internal/domain"
	apperrors "careerprep/pkg/errors"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) (*domain.SupabaseUser, bool) {
	user, ok := r.Context().Value(userContextKey).(*domain.SupabaseUser)
	return user, ok
}

// GetTokenFromContext extracts the authentication token from request context
func GetTokenFromContext(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(tokenContextKey).(string)
	return token, ok
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error       string      `json:"error"`
	Type        string      `json:"type"`
	Recoverable bool        `json:"recoverable"`
	Data        interface{} `json:"data,omitempty"`
}

// writeAppError maps err onto an AppError and writes it. Server-side failures
// are logged; client errors are not.
func writeAppError(w http.ResponseWriter, logger domain.Logger, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed", err, "type", appErr.Type)
	}
	writeJSON(w, appErr.StatusCode, errorResponse{
		Error:       appErr.Message,
		Type:        string(appErr.Type),
		Recoverable: appErr.Recoverable,
		Data:        appErr.Data,
	})
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	var quotaErr *domain.QuotaExceededError
	var cfgErr *domain.ConfigurationError
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &quotaErr):
		return apperrors.NewQuotaError(quotaErr.Decision.Reason, quotaErr.Decision)
	case errors.As(err, &cfgErr) && cfgErr.Reason == "":
		return apperrors.NewNotFoundError("Unknown feature: " + cfgErr.FeatureID)
	case errors.As(err, &cfgErr):
		return apperrors.NewConfigurationError("Feature is misconfigured", err)
	case errors.As(err, &validationErr):
		return apperrors.NewValidationError(validationErr.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperrors.NewConflictError(err.Error(), err)
	case errors.Is(err, domain.ErrChallengeNotFound):
		return apperrors.NewNotFoundError("No challenge available today")
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewUnauthorizedError("Invalid token")
	case errors.Is(err, domain.ErrUnknownTier):
		return apperrors.NewConfigurationError("Unknown subscription tier", err)
	case errors.Is(err, domain.ErrNetworkTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Upstream request timed out", err)
	case errors.Is(err, domain.ErrNetwork):
		return apperrors.NewNetworkError("Upstream service unavailable", err)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}
