package handler

import (
	"net/http"

	"careerprep/internal/domain"

	"github.com/gorilla/mux"
)

// EntitlementHandler exposes feature quotas
type EntitlementHandler struct {
	entitlements domain.EntitlementService
	logger       domain.Logger
}

func NewEntitlementHandler(entitlements domain.EntitlementService, logger domain.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// Check returns the entitlement decision for one feature without consuming it
func (h *EntitlementHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	decision, err := h.entitlements.Check(r.Context(), user.ID, mux.Vars(r)["feature"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// Use consumes one use of a feature. A denial is a 402 carrying the decision.
func (h *EntitlementHandler) Use(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	usage, err := h.entitlements.Use(r.Context(), user.ID, mux.Vars(r)["feature"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}

// Summary returns the quota state of every feature
func (h *EntitlementHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	summary, err := h.entitlements.Summary(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
