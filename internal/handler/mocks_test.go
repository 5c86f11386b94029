package handler

import (
	"context"
	"net/http"
	"sync"

	"careerprep/internal/domain"
)

func createContextWithUser(r *http.Request, user *domain.SupabaseUser) *http.Request {
	ctx := context.WithValue(r.Context(), userContextKey, user)
	return r.WithContext(ctx)
}

func createContextWithToken(r *http.Request, token string) *http.Request {
	ctx := context.WithValue(r.Context(), tokenContextKey, token)
	return r.WithContext(domain.ContextWithAccessToken(ctx, token))
}

type mockAuthService struct {
	user      *domain.SupabaseUser
	err       error
	lastToken string
}

func (m *mockAuthService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

type mockSubscriptionSource struct {
	tier    domain.SubscriptionTier
	err     error
	lastCtx context.Context
}

func (m *mockSubscriptionSource) FetchTier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	m.lastCtx = ctx
	if m.err != nil {
		return "", m.err
	}
	return m.tier, nil
}

type mockEntitlementService struct {
	decision domain.Decision
	usage    domain.FeatureUsage
	summary  *domain.UsageSummary
	err      error

	lastUser    string
	lastFeature string
}

func (m *mockEntitlementService) Check(ctx context.Context, userID, featureID string) (domain.Decision, error) {
	m.lastUser, m.lastFeature = userID, featureID
	return m.decision, m.err
}

func (m *mockEntitlementService) Use(ctx context.Context, userID, featureID string) (domain.FeatureUsage, error) {
	m.lastUser, m.lastFeature = userID, featureID
	return m.usage, m.err
}

func (m *mockEntitlementService) Summary(ctx context.Context, userID string) (*domain.UsageSummary, error) {
	m.lastUser = userID
	return m.summary, m.err
}

type mockChallengeService struct {
	view     domain.ChallengeSessionView
	result   *domain.SubmissionResult
	decision domain.Decision
	err      error

	lastUser   string
	lastAnswer string
	submits    int
}

func (m *mockChallengeService) LoadToday(ctx context.Context, userID string) (domain.ChallengeSessionView, error) {
	m.lastUser = userID
	return m.view, m.err
}

func (m *mockChallengeService) Begin(userID string) (domain.ChallengeSessionView, error) {
	m.lastUser = userID
	return m.view, m.err
}

func (m *mockChallengeService) UpdateAnswer(userID, text string) (domain.ChallengeSessionView, error) {
	m.lastUser, m.lastAnswer = userID, text
	return m.view, m.err
}

func (m *mockChallengeService) Submit(ctx context.Context, userID string) (*domain.SubmissionResult, error) {
	m.lastUser = userID
	m.submits++
	return m.result, m.err
}

func (m *mockChallengeService) OthersSolutions(ctx context.Context, userID string) (domain.Decision, error) {
	m.lastUser = userID
	return m.decision, m.err
}

func (m *mockChallengeService) Snapshot(userID string) domain.ChallengeSessionView {
	m.lastUser = userID
	return m.view
}

type mockEventBus struct {
	mu       sync.Mutex
	handlers map[domain.SubscriptionToken]domain.EventHandler
	next     int
	ready    chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		handlers: make(map[domain.SubscriptionToken]domain.EventHandler),
		ready:    make(chan struct{}, 1),
	}
}

func (b *mockEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionToken {
	b.mu.Lock()
	b.next++
	token := domain.SubscriptionToken(string(eventType) + "-" + string(rune('0'+b.next)))
	b.handlers[token] = handler
	b.mu.Unlock()
	select {
	case b.ready <- struct{}{}:
	default:
	}
	return token
}

func (b *mockEventBus) Unsubscribe(token domain.SubscriptionToken) {
	b.mu.Lock()
	delete(b.handlers, token)
	b.mu.Unlock()
}

func (b *mockEventBus) publish(ev domain.Event) {
	b.mu.Lock()
	handlers := make([]domain.EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (b *mockEventBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
