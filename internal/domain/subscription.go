package domain

import (
	"fmt"
	"strings"
)

// SubscriptionTier is the user's subscription level.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "free"
	TierPremium  SubscriptionTier = "premium"
	TierUltimate SubscriptionTier = "ultimate"
)

// Tiers lists every tier in ascending order.
var Tiers = []SubscriptionTier{TierFree, TierPremium, TierUltimate}

// Rank returns the position of the tier in the total order free < premium < ultimate,
// or -1 for an unknown tier.
func (t SubscriptionTier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the defined tiers.
func (t SubscriptionTier) Valid() bool {
	return t.Rank() >= 0
}

// Above returns the tiers strictly above t, lowest first.
func (t SubscriptionTier) Above() []SubscriptionTier {
	rank := t.Rank()
	if rank < 0 {
		return nil
	}
	return Tiers[rank+1:]
}

// ParseTier parses a tier name.
func ParseTier(s string) (SubscriptionTier, error) {
	t := SubscriptionTier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// TierForPlan maps a stored billing plan name to a tier.
//
// Billing stores plan ids with a cadence suffix (premium_monthly, ultimate_yearly).
// Anything unrecognised falls back to free.
func TierForPlan(plan string) SubscriptionTier {
	p := strings.ToLower(strings.TrimSpace(plan))
	switch {
	case strings.HasPrefix(p, "ultimate"), p == "founder_lifetime":
		return TierUltimate
	case strings.HasPrefix(p, "premium"), strings.HasPrefix(p, "pro"):
		return TierPremium
	default:
		return TierFree
	}
}
