package domain

import "time"

// UsageCounter counts uses of one feature in the current period.
type UsageCounter struct {
	FeatureID   string           `json:"feature_id"`
	Tier        SubscriptionTier `json:"tier"`
	Count       int              `json:"count"`
	PeriodStart time.Time        `json:"period_start"`
}

// FeatureUsage is the quota state of one feature. Limit and Remaining are
// Unlimited (-1) when there is no cap.
type FeatureUsage struct {
	FeatureID string    `json:"feature_id"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// UsageSummary is the quota state of every feature for a user.
type UsageSummary struct {
	UserID   string                  `json:"user_id"`
	Tier     SubscriptionTier        `json:"tier"`
	Degraded bool                    `json:"degraded"`
	Features map[string]FeatureUsage `json:"features"`
}
