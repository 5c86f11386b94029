package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"careerprep/internal/domain"
)

// MockLogger records messages and is safe for concurrent use.
type MockLogger struct {
	mu       sync.Mutex
	messages []string
	warns    int
}

func NewMockLogger() *MockLogger {
	return &MockLogger{messages: []string{}}
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.record("INFO: " + msg)
}

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	m.record("ERROR: " + msg + " - " + err.Error())
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.record("DEBUG: " + msg)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.mu.Lock()
	m.warns++
	m.mu.Unlock()
	m.record("WARN: " + msg)
}

func (m *MockLogger) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

// Count returns how many recorded lines equal line, e.g. "WARN: msg".
func (m *MockLogger) Count(line string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg == line {
			n++
		}
	}
	return n
}

func (m *MockLogger) WarnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warns
}

// mockStore is an in-memory LocalStore that can be switched to fail.
type mockStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failing bool
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

var errStoreDown = errors.New("disk unavailable")

func (s *mockStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	v, ok := s.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return v, nil
}

func (s *mockStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.data[key] = value
	return nil
}

func (s *mockStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	delete(s.data, key)
	return nil
}

// mockChallengeSource serves a fixed challenge and counts calls. When gate is
// set, SubmitChallenge signals entered and blocks until gate is closed.
type mockChallengeSource struct {
	mu          sync.Mutex
	challenge   *domain.Challenge
	result      domain.SubmissionResult
	fetchCalls  int
	submitCalls int
	answers     []string
	submitErrs  []error
	entered     chan struct{}
	gate        chan struct{}
}

func newMockChallengeSource(challenge *domain.Challenge) *mockChallengeSource {
	return &mockChallengeSource{
		challenge: challenge,
		result:    domain.SubmissionResult{Score: 87, Feedback: "Clear structure", SolutionText: "Use STAR"},
	}
}

func (m *mockChallengeSource) FetchTodayChallenge(ctx context.Context, userID, date string) (*domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.challenge == nil {
		return nil, nil
	}
	c := *m.challenge
	return &c, nil
}

func (m *mockChallengeSource) SubmitChallenge(ctx context.Context, userID, challengeID, answer string) (*domain.SubmissionResult, error) {
	m.mu.Lock()
	m.submitCalls++
	m.answers = append(m.answers, answer)
	var err error
	if len(m.submitErrs) > 0 {
		err = m.submitErrs[0]
		m.submitErrs = m.submitErrs[1:]
	}
	entered, gate := m.entered, m.gate
	result := m.result
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *mockChallengeSource) SubmitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCalls
}

func (m *mockChallengeSource) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// mockUsageSource keeps server counts per user and feature. Uses are keyed by
// use id so a repeated confirm does not count twice.
type mockUsageSource struct {
	mu           sync.Mutex
	counts       map[string]map[string]int
	uses         map[string]bool
	fetchErr     error
	confirmErr   error
	confirmDelay time.Duration
	fetchCalls   int
	confirmCalls int
}

func newMockUsageSource() *mockUsageSource {
	return &mockUsageSource{
		counts: make(map[string]map[string]int),
		uses:   make(map[string]bool),
	}
}

func (m *mockUsageSource) seed(userID, featureID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[userID] == nil {
		m.counts[userID] = make(map[string]int)
	}
	m.counts[userID][featureID] = n
}

func (m *mockUsageSource) count(userID, featureID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[userID][featureID]
}

func (m *mockUsageSource) FetchUsage(ctx context.Context, userID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make(map[string]int, len(m.counts[userID]))
	for k, v := range m.counts[userID] {
		out[k] = v
	}
	return out, nil
}

// ConfirmUse writes first and then waits confirmDelay, so a short attempt
// timeout loses the reply of a write that landed.
func (m *mockUsageSource) ConfirmUse(ctx context.Context, userID, featureID, useID string) (int, error) {
	m.mu.Lock()
	m.confirmCalls++
	if m.confirmErr != nil {
		m.mu.Unlock()
		return 0, m.confirmErr
	}
	if !m.uses[useID] {
		m.uses[useID] = true
		if m.counts[userID] == nil {
			m.counts[userID] = make(map[string]int)
		}
		m.counts[userID][featureID]++
	}
	count := m.counts[userID][featureID]
	delay := m.confirmDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return count, nil
}

func (m *mockUsageSource) ConfirmCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmCalls
}

type mockSubscriptionSource struct {
	tier domain.SubscriptionTier
	err  error
}

func (m *mockSubscriptionSource) FetchTier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	return m.tier, m.err
}

type stubEntitlements struct {
	decision domain.Decision
	feature  string
}

func (s *stubEntitlements) Check(ctx context.Context, userID, featureID string) (domain.Decision, error) {
	s.feature = featureID
	return s.decision, nil
}

// fastRetry keeps tests quick while still exercising backoff.
func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Timeout:     time.Second,
	}
}
