package domain

import "time"

// DateLayout is the calendar-date key used for challenges and submission markers.
const DateLayout = "2006-01-02"

// DateKey returns the local calendar date of t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Challenge is the day's timed free-response prompt. It is issued by the
// challenge source and never modified afterwards.
type Challenge struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Prompt         string    `json:"prompt"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedForDate string    `json:"created_for_date"`
}

// SessionState is the lifecycle state of a ChallengeSession.
type SessionState string

const (
	SessionNoChallenge       SessionState = "no_challenge"
	SessionReady             SessionState = "ready"
	SessionActive            SessionState = "active"
	SessionSubmissionPending SessionState = "submission_pending"
	SessionSubmitted         SessionState = "submitted"
)

// SubmissionResult is the graded outcome of a submission.
type SubmissionResult struct {
	Score                        int    `json:"score"`
	Feedback                     string `json:"feedback"`
	SolutionText                 string `json:"solution_text"`
	OthersSolutionsAccessAllowed bool   `json:"others_solutions_access_allowed"`
}

// SubmissionMarker is persisted locally once a challenge is submitted so that a
// reload on the same day goes straight to the submitted state.
type SubmissionMarker struct {
	ChallengeID string           `json:"challenge_id"`
	Date        string           `json:"date"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Challenge   Challenge        `json:"challenge"`
	Result      SubmissionResult `json:"result"`
}

// ChallengeSessionView is a read-only copy of a session's state.
type ChallengeSessionView struct {
	ChallengeID      string            `json:"challenge_id,omitempty"`
	Challenge        *Challenge        `json:"challenge,omitempty"`
	State            SessionState      `json:"state"`
	AnswerDraft      string            `json:"answer_draft"`
	RemainingSeconds int               `json:"remaining_seconds"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	Result           *SubmissionResult `json:"result,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
}
