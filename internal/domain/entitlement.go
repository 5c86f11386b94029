package domain

import (
	"fmt"
	"sort"
)

// Unlimited marks a quota without an upper bound.
const Unlimited = -1

// ResetPeriod is how often a usage counter starts over.
type ResetPeriod string

const ResetDaily ResetPeriod = "daily"

// Feature ids gated by the entitlement model.
const (
	FeatureCVGeneration    = "cv_generation"
	FeatureInterview       = "interview"
	FeatureQuiz            = "quiz"
	FeatureChat            = "chat"
	FeatureOthersSolutions = "others_solutions"
)

// FeatureQuota is the per-tier limit for one feature.
type FeatureQuota struct {
	FeatureID   string                   `json:"feature_id"`
	Limits      map[SubscriptionTier]int `json:"limits"`
	ResetPeriod ResetPeriod              `json:"reset_period"`
}

// LimitFor returns the limit for tier. A tier without an entry gets 0.
func (q FeatureQuota) LimitFor(tier SubscriptionTier) int {
	limit, ok := q.Limits[tier]
	if !ok {
		return 0
	}
	return limit
}

// Decision is the outcome of an entitlement check.
type Decision struct {
	FeatureID     string           `json:"feature_id"`
	Tier          SubscriptionTier `json:"tier"`
	Allowed       bool             `json:"allowed"`
	Limit         int              `json:"limit"`
	Used          int              `json:"used"`
	Reason        string           `json:"reason,omitempty"`
	SuggestedTier SubscriptionTier `json:"suggested_tier,omitempty"`
}

// FeatureCatalog holds the quota of every known feature keyed by feature id.
type FeatureCatalog map[string]FeatureQuota

// DefaultCatalog returns the production feature limits.
func DefaultCatalog() FeatureCatalog {
	return FeatureCatalog{
		FeatureCVGeneration:    dailyQuota(FeatureCVGeneration, 1, 10, Unlimited),
		FeatureInterview:       dailyQuota(FeatureInterview, 3, 20, Unlimited),
		FeatureQuiz:            dailyQuota(FeatureQuiz, 5, 50, Unlimited),
		FeatureChat:            dailyQuota(FeatureChat, 10, 100, Unlimited),
		FeatureOthersSolutions: dailyQuota(FeatureOthersSolutions, 0, Unlimited, Unlimited),
	}
}

func dailyQuota(featureID string, free, premium, ultimate int) FeatureQuota {
	return FeatureQuota{
		FeatureID: featureID,
		Limits: map[SubscriptionTier]int{
			TierFree:     free,
			TierPremium:  premium,
			TierUltimate: ultimate,
		},
		ResetPeriod: ResetDaily,
	}
}

// FeatureIDs returns the catalog's feature ids in sorted order.
func (c FeatureCatalog) FeatureIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Quota returns the quota for featureID or a ConfigurationError.
func (c FeatureCatalog) Quota(featureID string) (FeatureQuota, error) {
	q, ok := c[featureID]
	if !ok {
		return FeatureQuota{}, &ConfigurationError{FeatureID: featureID}
	}
	return q, nil
}

// Validate checks that every feature defines a limit for every tier and that
// limits never decrease as the tier goes up.
func (c FeatureCatalog) Validate() error {
	for _, id := range c.FeatureIDs() {
		q := c[id]
		prev := 0
		for i, tier := range Tiers {
			limit, ok := q.Limits[tier]
			if !ok {
				return &ConfigurationError{FeatureID: id, Reason: fmt.Sprintf("missing limit for tier %s", tier)}
			}
			if limit < 0 && limit != Unlimited {
				return &ConfigurationError{FeatureID: id, Reason: fmt.Sprintf("invalid limit %d for tier %s", limit, tier)}
			}
			if i > 0 && !limitAtLeast(limit, prev) {
				return &ConfigurationError{FeatureID: id, Reason: fmt.Sprintf("limit for tier %s is below the tier beneath it", tier)}
			}
			prev = limit
		}
	}
	return nil
}

// Check decides whether a user on tier with usage uses of featureID this period
// may use it once more. It has no side effects.
//
// An unknown featureID is a ConfigurationError, not a denial.
func (c FeatureCatalog) Check(tier SubscriptionTier, featureID string, usage int) (Decision, error) {
	q, err := c.Quota(featureID)
	if err != nil {
		return Decision{}, err
	}
	if !tier.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	if usage < 0 {
		return Decision{}, &ValidationError{Field: "usage", Message: "must not be negative"}
	}

	limit := q.LimitFor(tier)
	d := Decision{
		FeatureID: featureID,
		Tier:      tier,
		Limit:     limit,
		Used:      usage,
		Allowed:   allows(limit, usage),
	}
	if d.Allowed {
		return d, nil
	}

	d.SuggestedTier = TierUltimate
	for _, next := range tier.Above() {
		if allows(q.LimitFor(next), usage) {
			d.SuggestedTier = next
			break
		}
	}
	if limit == 0 {
		d.Reason = fmt.Sprintf("%s is not included in the %s plan", featureID, tier)
	} else {
		d.Reason = fmt.Sprintf("daily limit of %d reached for %s", limit, featureID)
	}
	return d, nil
}

// Remaining returns how many uses are left, or Unlimited.
func Remaining(limit, used int) int {
	if limit == Unlimited {
		return Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

func allows(limit, usage int) bool {
	return limit == Unlimited || usage < limit
}

// limitAtLeast reports a >= b with Unlimited as the top element.
func limitAtLeast(a, b int) bool {
	if a == Unlimited {
		return true
	}
	if b == Unlimited {
		return false
	}
	return a >= b
}
