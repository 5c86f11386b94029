package service

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"careerprep/internal/domain"
)

const usageKeyPrefix = "usage:"

// UsageStore keeps per-feature daily usage counters for one user.
//
// Counters are persisted to a LocalStore but the server stays authoritative:
// Reconcile folds server counts in with max(local, server). When persistence
// fails the store keeps working in memory and reports Degraded.
type UsageStore struct {
	mu       sync.Mutex
	store    domain.LocalStore
	logger   domain.Logger
	now      func() time.Time
	tier     domain.SubscriptionTier
	counters map[string]*domain.UsageCounter
	degraded bool
}

// NewUsageStore creates a usage store backed by store.
func NewUsageStore(store domain.LocalStore, tier domain.SubscriptionTier, logger domain.Logger) *UsageStore {
	return &UsageStore{
		store:    store,
		logger:   logger,
		now:      time.Now,
		tier:     tier,
		counters: make(map[string]*domain.UsageCounter),
	}
}

// SetTier records the tier subsequent counters are attributed to.
func (s *UsageStore) SetTier(tier domain.SubscriptionTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = tier
}

// Degraded reports whether persistence has failed during this process lifetime.
func (s *UsageStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// GetUsage returns the count for featureID in the current day.
func (s *UsageStore) GetUsage(featureID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter(featureID).Count
}

// RecordUse increments the counter for featureID and returns the new count.
// Callers must have received an allowed entitlement decision first.
func (s *UsageStore) RecordUse(featureID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counter(featureID)
	c.Count++
	c.Tier = s.tier
	s.persist(c)
	return c.Count
}

// Reconcile merges server-confirmed counts into the local counters. Each
// counter becomes max(local, server) so local increments not yet seen by the
// server survive.
func (s *UsageStore) Reconcile(serverCounts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for featureID, serverCount := range serverCounts {
		c := s.counter(featureID)
		if serverCount <= c.Count {
			continue
		}
		c.Count = serverCount
		c.Tier = s.tier
		s.persist(c)
	}
}

// Snapshot returns a copy of the counters loaded so far.
func (s *UsageStore) Snapshot() map[string]domain.UsageCounter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.UsageCounter, len(s.counters))
	for id := range s.counters {
		out[id] = *s.counter(id)
	}
	return out
}

// counter returns the counter for featureID, loading it from the store on first
// access and resetting it when its period started before today. Callers hold s.mu.
func (s *UsageStore) counter(featureID string) *domain.UsageCounter {
	today := domain.StartOfDay(s.now())

	c, ok := s.counters[featureID]
	if !ok {
		c = s.load(featureID)
		s.counters[featureID] = c
	}
	if c.PeriodStart.Before(today) {
		c.Count = 0
		c.PeriodStart = today
		c.Tier = s.tier
		s.persist(c)
	}
	return c
}

func (s *UsageStore) load(featureID string) *domain.UsageCounter {
	fresh := &domain.UsageCounter{
		FeatureID:   featureID,
		Tier:        s.tier,
		PeriodStart: domain.StartOfDay(s.now()),
	}
	if s.degraded {
		return fresh
	}

	raw, err := s.store.Get(usageKeyPrefix + featureID)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.markDegraded(err)
		}
		return fresh
	}

	var stored domain.UsageCounter
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Warn("Discarding unreadable usage counter", "feature_id", featureID, "error", err)
		return fresh
	}
	stored.FeatureID = featureID
	return &stored
}

func (s *UsageStore) persist(c *domain.UsageCounter) {
	if s.degraded {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		s.markDegraded(err)
		return
	}
	if err := s.store.Set(usageKeyPrefix+c.FeatureID, raw); err != nil {
		s.markDegraded(err)
	}
}

func (s *UsageStore) markDegraded(err error) {
	if !s.degraded {
		s.logger.Error("Usage counter persistence unavailable, continuing in memory", err)
	}
	s.degraded = true
}
