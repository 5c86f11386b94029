package handler

import (
	"encoding/json"
	"net/http"

	"careerprep/internal/domain"
)

const maxAnswerBytes = 64 * 1024

// ChallengeHandler drives the daily challenge session
type ChallengeHandler struct {
	challenges domain.ChallengeService
	logger     domain.Logger
}

func NewChallengeHandler(challenges domain.ChallengeService, logger domain.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challenges: challenges,
		logger:     logger,
	}
}

// Today loads today's challenge and returns the session view
func (h *ChallengeHandler) Today(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	view, err := h.challenges.LoadToday(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// State returns the session view without loading anything; clients poll it for the countdown.
func (h *ChallengeHandler) State(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	writeJSON(w, http.StatusOK, h.challenges.Snapshot(user.ID))
}

func (h *ChallengeHandler) Begin(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	view, err := h.challenges.Begin(user.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *ChallengeHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnswerBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.challenges.UpdateAnswer(user.ID, req.Answer)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitResponse struct {
	Result  *domain.SubmissionResult    `json:"result"`
	Session domain.ChallengeSessionView `json:"session"`
}

// Submit submits the current answer. Repeated calls return the same result.
func (h *ChallengeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	result, err := h.challenges.Submit(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Result: result, Session: h.challenges.Snapshot(user.ID)})
}

// OthersSolutions returns the others_solutions decision; a denial carries the upgrade tier.
func (h *ChallengeHandler) OthersSolutions(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	decision, err := h.challenges.OthersSolutions(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
