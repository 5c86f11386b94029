package repository

import (
	"context"
	"fmt"

	"careerprep/internal/domain"
)

// SupabaseSubscriptionRepository resolves tiers from user_preferences.subscription_plan.
type SupabaseSubscriptionRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSupabaseSubscriptionRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.SubscriptionSource {
	return &SupabaseSubscriptionRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// FetchTier returns the user's tier; users without a preferences row are free.
func (r *SupabaseSubscriptionRepository) FetchTier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	client, err := clientFor(ctx, r.supabaseClient)
	if err != nil {
		return "", err
	}

	data, err := execute(ctx, client.From("user_preferences").
		Select("subscription_plan", "", false).
		Eq("user_id", userID).
		Limit(1, "").
		Execute)
	if err != nil {
		return "", fmt.Errorf("failed to get subscription plan: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return domain.TierFree, nil
	}
	return domain.TierForPlan(getString(rows[0], "subscription_plan")), nil
}
