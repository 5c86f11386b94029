package repository

import (
	"context"
	"fmt"
	"time"

	"careerprep/internal/domain"
)

// SupabaseChallengeRepository implements domain.ChallengeSource on the
// daily_challenges and challenge_submissions tables. Grading happens in the
// database; the inserted submission row comes back with its grade columns.
type SupabaseChallengeRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSupabaseChallengeRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.ChallengeSource {
	return &SupabaseChallengeRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// FetchTodayChallenge returns the challenge published for date, or nil if there is none.
func (r *SupabaseChallengeRepository) FetchTodayChallenge(ctx context.Context, userID, date string) (*domain.Challenge, error) {
	client, err := clientFor(ctx, r.supabaseClient)
	if err != nil {
		return nil, err
	}

	data, err := execute(ctx, client.From("daily_challenges").
		Select("*", "", false).
		Eq("created_for_date", date).
		Limit(1, "").
		Execute)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily challenge: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		r.logger.Debug("No challenge published", "date", date, "user_id", userID)
		return nil, nil
	}
	return mapToChallenge(rows[0]), nil
}

// SubmitChallenge stores the user's answer. A user has at most one submission
// per challenge: if one exists, its result is returned with domain.ErrAlreadySubmitted.
func (r *SupabaseChallengeRepository) SubmitChallenge(ctx context.Context, userID, challengeID, answer string) (*domain.SubmissionResult, error) {
	client, err := clientFor(ctx, r.supabaseClient)
	if err != nil {
		return nil, err
	}

	existing, err := r.findSubmission(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, domain.ErrAlreadySubmitted
	}

	row := map[string]interface{}{
		"user_id":      userID,
		"challenge_id": challengeID,
		"answer":       answer,
		"submitted_at": time.Now().UTC(),
	}
	data, err := execute(ctx, client.From("challenge_submissions").
		Insert(row, false, "", "representation", "").
		Execute)
	if isUniqueViolation(err) {
		// Lost a race with another device.
		existing, findErr := r.findSubmission(ctx, userID, challengeID)
		if findErr != nil {
			return nil, findErr
		}
		return existing, domain.ErrAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to submit challenge: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &domain.SubmissionResult{}, nil
	}

	r.logger.Info("Challenge submission stored", "user_id", userID, "challenge_id", challengeID)
	return mapToSubmissionResult(rows[0]), nil
}

func (r *SupabaseChallengeRepository) findSubmission(ctx context.Context, userID, challengeID string) (*domain.SubmissionResult, error) {
	client, err := clientFor(ctx, r.supabaseClient)
	if err != nil {
		return nil, err
	}

	data, err := execute(ctx, client.From("challenge_submissions").
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("challenge_id", challengeID).
		Limit(1, "").
		Execute)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge submission: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return mapToSubmissionResult(rows[0]), nil
}

func mapToChallenge(data map[string]interface{}) *domain.Challenge {
	return &domain.Challenge{
		ID:             getString(data, "id"),
		Title:          getString(data, "title"),
		Prompt:         getString(data, "prompt"),
		ExpiresAt:      getTime(data, "expires_at"),
		CreatedForDate: getString(data, "created_for_date"),
	}
}

func mapToSubmissionResult(data map[string]interface{}) *domain.SubmissionResult {
	return &domain.SubmissionResult{
		Score:                        getInt(data, "score"),
		Feedback:                     getString(data, "feedback"),
		SolutionText:                 getString(data, "solution_text"),
		OthersSolutionsAccessAllowed: getBool(data, "others_solutions_access_allowed"),
	}
}
