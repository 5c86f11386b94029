package handler

import (
	"net/http"

	"careerprep/internal/domain"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	subscriptions domain.SubscriptionSource
	logger        domain.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(subscriptions domain.SubscriptionSource, logger domain.Logger) *AuthHandler {
	return &AuthHandler{
		subscriptions: subscriptions,
		logger:        logger,
	}
}

type profileResponse struct {
	User *domain.SupabaseUser    `json:"user"`
	Tier domain.SubscriptionTier `json:"tier"`
}

// GetProfile returns the current user together with their subscription tier
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	tier, err := h.subscriptions.FetchTier(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{User: user, Tier: tier})
}

func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
