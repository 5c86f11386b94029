package service

import (
	"testing"
	"time"

	"careerprep/internal/domain"
)

func newTestUsageStore(store domain.LocalStore, now *time.Time) (*UsageStore, *MockLogger) {
	logger := NewMockLogger()
	s := NewUsageStore(store, domain.TierFree, logger)
	s.now = func() time.Time { return *now }
	return s, logger
}

func TestUsageStore_RecordUsePersists(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	store := newMockStore()

	s, _ := newTestUsageStore(store, &now)
	if got := s.RecordUse(domain.FeatureQuiz); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := s.RecordUse(domain.FeatureQuiz); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	// A new process reading the same store sees the persisted count.
	reloaded, _ := newTestUsageStore(store, &now)
	if got := reloaded.GetUsage(domain.FeatureQuiz); got != 2 {
		t.Fatalf("expected persisted count 2, got %d", got)
	}
}

func TestUsageStore_ReconcileTakesMax(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	s, _ := newTestUsageStore(newMockStore(), &now)

	s.RecordUse(domain.FeatureChat)
	s.RecordUse(domain.FeatureChat)
	s.RecordUse(domain.FeatureChat)

	// Server lags behind local increments: local wins.
	s.Reconcile(map[string]int{domain.FeatureChat: 1})
	if got := s.GetUsage(domain.FeatureChat); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}

	// Server saw uses from another device: server wins, never summed.
	s.Reconcile(map[string]int{domain.FeatureChat: 5, domain.FeatureQuiz: 2})
	if got := s.GetUsage(domain.FeatureChat); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := s.GetUsage(domain.FeatureQuiz); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

// Reconcile never leaves a counter below what the server confirmed.
func TestUsageStore_ReconcileNeverBelowServer(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	for local := 0; local < 6; local++ {
		for server := 0; server < 6; server++ {
			s, _ := newTestUsageStore(newMockStore(), &now)
			for i := 0; i < local; i++ {
				s.RecordUse(domain.FeatureInterview)
			}
			s.Reconcile(map[string]int{domain.FeatureInterview: server})
			got := s.GetUsage(domain.FeatureInterview)
			if got < server || got < local {
				t.Fatalf("local=%d server=%d: got %d", local, server, got)
			}
		}
	}
}

func TestUsageStore_DailyRollover(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 59, 0, 0, time.Local)
	store := newMockStore()
	s, _ := newTestUsageStore(store, &now)

	s.RecordUse(domain.FeatureCVGeneration)
	if got := s.GetUsage(domain.FeatureCVGeneration); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if got := s.GetUsage(domain.FeatureCVGeneration); got != 0 {
		t.Fatalf("expected counter reset on new day, got %d", got)
	}

	// The reset is persisted as well.
	reloaded, _ := newTestUsageStore(store, &now)
	if got := reloaded.GetUsage(domain.FeatureCVGeneration); got != 0 {
		t.Fatalf("expected persisted reset, got %d", got)
	}
}

func TestUsageStore_DegradedKeepsCountingInMemory(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	store := newMockStore()
	store.failing = true
	s, _ := newTestUsageStore(store, &now)

	s.RecordUse(domain.FeatureQuiz)
	s.RecordUse(domain.FeatureQuiz)

	if !s.Degraded() {
		t.Fatalf("expected store to report degraded")
	}
	if got := s.GetUsage(domain.FeatureQuiz); got != 2 {
		t.Fatalf("expected in-memory count 2, got %d", got)
	}
}
