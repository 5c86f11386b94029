package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"careerprep/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// StoreFactory returns the local store holding one user's persisted state.
type StoreFactory func(userID string) domain.LocalStore

// EntitlementService answers "may this user use this feature now" by combining
// the user's tier, the local usage counters and the server's confirmed counts.
type EntitlementService struct {
	catalog       domain.FeatureCatalog
	subscriptions domain.SubscriptionSource
	usage         domain.UsageSource
	stores        StoreFactory
	retry         RetryPolicy
	logger        domain.Logger
	now           func() time.Time

	mu       sync.Mutex
	counters map[string]*UsageStore
	locks    map[string]*sync.Mutex
	fetches  singleflight.Group
}

// NewEntitlementService validates catalog and creates the service.
func NewEntitlementService(
	catalog domain.FeatureCatalog,
	subscriptions domain.SubscriptionSource,
	usage domain.UsageSource,
	stores StoreFactory,
	retry RetryPolicy,
	logger domain.Logger,
) (*EntitlementService, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &EntitlementService{
		catalog:       catalog,
		subscriptions: subscriptions,
		usage:         usage,
		stores:        stores,
		retry:         retry,
		logger:        logger,
		now:           time.Now,
		counters:      make(map[string]*UsageStore),
		locks:         make(map[string]*sync.Mutex),
	}, nil
}

// Catalog returns the feature catalog in use.
func (s *EntitlementService) Catalog() domain.FeatureCatalog {
	return s.catalog
}

// Check evaluates the entitlement for featureID after refreshing usage from the
// server. If the server is unreachable the local counters are used as-is.
func (s *EntitlementService) Check(ctx context.Context, userID, featureID string) (domain.Decision, error) {
	if _, err := s.catalog.Quota(featureID); err != nil {
		return domain.Decision{}, err
	}
	tier, counters, err := s.prepare(ctx, userID)
	if err != nil {
		return domain.Decision{}, err
	}
	used := counters.GetUsage(featureID)
	if counters.Degraded() {
		s.logger.Warn("Entitlement check using in-memory usage counters", "user_id", userID, "feature_id", featureID)
	}
	return s.catalog.Check(tier, featureID, used)
}

// Use checks featureID, records one use locally, confirms it with the server
// and reconciles. A denial is returned as *domain.QuotaExceededError.
func (s *EntitlementService) Use(ctx context.Context, userID, featureID string) (domain.FeatureUsage, error) {
	decision, counters, err := s.admit(ctx, userID, featureID)
	if err != nil {
		return domain.FeatureUsage{}, err
	}

	// One id per use; retries resend it so the server counts the use once.
	useID := uuid.NewString()
	var confirmed int
	err = Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		confirmed, err = s.usage.ConfirmUse(ctx, userID, featureID, useID)
		return err
	})
	if err != nil {
		// The use already happened; keep the optimistic local count and let the
		// next reconcile settle it.
		s.logger.Warn("Failed to confirm feature use with server", "user_id", userID, "feature_id", featureID, "error", err)
	} else {
		counters.Reconcile(map[string]int{featureID: confirmed})
	}

	return s.featureUsage(decision.Tier, featureID, counters.GetUsage(featureID)), nil
}

// admit checks featureID and records the use locally while holding the user's
// lock, so concurrent uses cannot both take the last slot.
func (s *EntitlementService) admit(ctx context.Context, userID, featureID string) (domain.Decision, *UsageStore, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	decision, err := s.Check(ctx, userID, featureID)
	if err != nil {
		return domain.Decision{}, nil, err
	}
	if !decision.Allowed {
		return domain.Decision{}, nil, &domain.QuotaExceededError{Decision: decision}
	}
	counters := s.countersFor(userID, decision.Tier)
	counters.RecordUse(featureID)
	return decision, counters, nil
}

func (s *EntitlementService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// Summary returns the quota state of every feature for userID.
func (s *EntitlementService) Summary(ctx context.Context, userID string) (*domain.UsageSummary, error) {
	tier, counters, err := s.prepare(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &domain.UsageSummary{
		UserID:   userID,
		Tier:     tier,
		Degraded: counters.Degraded(),
		Features: make(map[string]domain.FeatureUsage, len(s.catalog)),
	}
	for _, id := range s.catalog.FeatureIDs() {
		summary.Features[id] = s.featureUsage(tier, id, counters.GetUsage(id))
	}
	return summary, nil
}

// prepare resolves the tier and reconciles the user's counters with the server.
func (s *EntitlementService) prepare(ctx context.Context, userID string) (domain.SubscriptionTier, *UsageStore, error) {
	var tier domain.SubscriptionTier
	err := Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		tier, err = s.subscriptions.FetchTier(ctx, userID)
		return err
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve subscription tier: %w", err)
	}
	if !tier.Valid() {
		return "", nil, fmt.Errorf("%w: %q", domain.ErrUnknownTier, tier)
	}

	counters := s.countersFor(userID, tier)
	if serverCounts, err := s.fetchUsage(ctx, userID); err != nil {
		s.logger.Warn("Using local usage counters, server usage unavailable", "user_id", userID, "error", err)
	} else {
		counters.Reconcile(serverCounts)
	}
	return tier, counters, nil
}

// fetchUsage collapses concurrent fetches for the same user into one call.
func (s *EntitlementService) fetchUsage(ctx context.Context, userID string) (map[string]int, error) {
	v, err, _ := s.fetches.Do(userID, func() (interface{}, error) {
		var counts map[string]int
		err := Retry(ctx, s.retry, func(ctx context.Context) error {
			var err error
			counts, err = s.usage.FetchUsage(ctx, userID)
			return err
		})
		return counts, err
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]int), nil
}

func (s *EntitlementService) countersFor(userID string, tier domain.SubscriptionTier) *UsageStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	counters, ok := s.counters[userID]
	if !ok {
		counters = NewUsageStore(s.stores(userID), tier, s.logger)
		counters.now = s.now
		s.counters[userID] = counters
		return counters
	}
	counters.SetTier(tier)
	return counters
}

func (s *EntitlementService) featureUsage(tier domain.SubscriptionTier, featureID string, used int) domain.FeatureUsage {
	limit := s.catalog[featureID].LimitFor(tier)
	return domain.FeatureUsage{
		FeatureID: featureID,
		Limit:     limit,
		Used:      used,
		Remaining: domain.Remaining(limit, used),
		ResetAt:   domain.StartOfDay(s.now()).AddDate(0, 0, 1),
	}
}
