package repository

import (
	"context"
	"fmt"
	"time"

	"careerprep/internal/domain"
)

// SupabaseUsageRepository implements domain.UsageSource on the feature_uses
// table, one row per confirmed use keyed by use_id.
type SupabaseUsageRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
	now            func() time.Time
}

func NewSupabaseUsageRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseUsageRepository {
	return &SupabaseUsageRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
		now:            time.Now,
	}
}

// FetchUsage returns today's confirmed counts keyed by feature id.
func (r *SupabaseUsageRepository) FetchUsage(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.todaysUses(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, row := range rows {
		counts[getString(row, "feature_id")]++
	}
	return counts, nil
}

// ConfirmUse stores the use under useID and returns today's count for
// featureID. The row is upserted on use_id, so a retry after a lost reply
// leaves the count unchanged.
func (r *SupabaseUsageRepository) ConfirmUse(ctx context.Context, userID, featureID, useID string) (int, error) {
	if useID == "" {
		return 0, &domain.ValidationError{Field: "use_id", Message: "required"}
	}

	client, err := clientFor(ctx, r.supabaseClient)
	if err != nil {
		return 0, err
	}

	row := map[string]interface{}{
		"use_id":       useID,
		"user_id":      userID,
		"feature_id":   featureID,
		"period_start": domain.DateKey(r.now()),
		"created_at":   r.now().UTC(),
	}
	if _, err := execute(ctx, client.From("feature_uses").
		Upsert(row, "use_id", "", "").
		Execute); err != nil {
		return 0, fmt.Errorf("failed to record feature usage: %w", err)
	}

	rows, err := r.todaysUses(ctx, userID, featureID)
	if err != nil {
		return 0, err
	}

	r.logger.Debug("Feature use confirmed", "user_id", userID, "feature_id", featureID, "use_id", useID, "count", len(rows))
	return len(rows), nil
}

// todaysUses lists today's use rows, optionally for one feature.
func (r *SupabaseUsageRepository) todaysUses(ctx context.Context, userID, featureID string) ([]map[string]interface{}, error) {
	client, err := clientFor(ctx, r.supabaseClient)
	if err != nil {
		return nil, err
	}

	query := client.From("feature_uses").
		Select("use_id,feature_id", "", false).
		Eq("user_id", userID).
		Eq("period_start", domain.DateKey(r.now()))
	if featureID != "" {
		query = query.Eq("feature_id", featureID)
	}

	data, err := execute(ctx, query.Execute)
	if err != nil {
		return nil, fmt.Errorf("failed to get feature usage: %w", err)
	}
	return decodeRows(data)
}
