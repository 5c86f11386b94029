package service

import (
	"context"
	"sync"
	"time"

	"careerprep/internal/domain"
	"careerprep/pkg/logger"

	"github.com/google/uuid"
)

// SessionManagerOptions configures the sessions a SessionManager creates.
type SessionManagerOptions struct {
	Duration time.Duration
	// TickInterval is also the timer's unit: Duration/TickInterval ticks expire it.
	TickInterval time.Duration
	Retry        RetryPolicy
	AutoRetry    RetryPolicy
}

type managedSession struct {
	session    *ChallengeSession
	stopTicker context.CancelFunc
}

// SessionManager owns at most one ChallengeSession per user and drives each
// session's timer while it runs.
type SessionManager struct {
	opts          SessionManagerOptions
	source        domain.ChallengeSource
	stores        StoreFactory
	entitlements  domain.EntitlementChecker
	notifications *NotificationChannel
	logger        domain.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession
	closed   bool
}

// NewSessionManager creates a manager with no sessions.
func NewSessionManager(
	opts SessionManagerOptions,
	source domain.ChallengeSource,
	stores StoreFactory,
	entitlements domain.EntitlementChecker,
	notifications *NotificationChannel,
	log domain.Logger,
) *SessionManager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Duration < opts.TickInterval {
		opts.Duration = opts.TickInterval
	}
	return &SessionManager{
		opts:          opts,
		source:        source,
		stores:        stores,
		entitlements:  entitlements,
		notifications: notifications,
		logger:        log,
		sessions:      make(map[string]*managedSession),
	}
}

// Session returns the user's session, creating it on first use.
func (m *SessionManager) Session(userID string) *ChallengeSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ms, ok := m.sessions[userID]; ok {
		return ms.session
	}

	sessionLogger := logger.With(m.logger, "user_id", userID)
	session := NewChallengeSession(
		SessionOptions{
			UserID:      userID,
			Duration:    int(m.opts.Duration / m.opts.TickInterval),
			Retry:       m.opts.Retry,
			AutoRetry:   m.opts.AutoRetry,
			OnSubmitted: m.publishSubmitted(userID),
			OnExpired:   m.publishExpired(userID),
		},
		m.source,
		m.stores(userID),
		m.entitlements,
		NewChallengeTimer(m.opts.TickInterval),
		sessionLogger,
	)
	m.sessions[userID] = &managedSession{session: session, stopTicker: func() {}}
	return session
}

// LoadToday loads today's challenge for userID.
func (m *SessionManager) LoadToday(ctx context.Context, userID string) (domain.ChallengeSessionView, error) {
	return m.Session(userID).LoadToday(ctx)
}

// Begin starts the user's challenge and its timer driver.
func (m *SessionManager) Begin(userID string) (domain.ChallengeSessionView, error) {
	session := m.Session(userID)
	view, err := session.Begin()
	if err != nil {
		return view, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ms := m.sessions[userID]
	ms.stopTicker()
	if m.closed {
		ms.stopTicker = func() {}
		return view, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	ms.stopTicker = cancel
	go RunTimer(ctx, session.Timer(), m.opts.TickInterval)
	return view, nil
}

// UpdateAnswer replaces the user's answer draft.
func (m *SessionManager) UpdateAnswer(userID, text string) (domain.ChallengeSessionView, error) {
	session := m.Session(userID)
	if err := session.UpdateAnswer(text); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// Submit submits the user's answer.
func (m *SessionManager) Submit(ctx context.Context, userID string) (*domain.SubmissionResult, error) {
	return m.Session(userID).Submit(ctx)
}

// OthersSolutions checks whether the user may see other users' solutions.
func (m *SessionManager) OthersSolutions(ctx context.Context, userID string) (domain.Decision, error) {
	return m.Session(userID).ViewOthersSolutions(ctx)
}

// Snapshot returns the user's session state.
func (m *SessionManager) Snapshot(userID string) domain.ChallengeSessionView {
	return m.Session(userID).Snapshot()
}

// Close stops every timer driver and background retry.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, ms := range m.sessions {
		ms.stopTicker()
		ms.session.Close()
	}
}

func (m *SessionManager) publishSubmitted(userID string) func(domain.Challenge, domain.SubmissionResult, bool) {
	return func(challenge domain.Challenge, result domain.SubmissionResult, auto bool) {
		if m.notifications == nil {
			return
		}
		m.notifications.Publish(domain.Event{
			ID:     uuid.NewString(),
			UserID: userID,
			Type:   domain.EventChallengeSubmitted,
			Payload: map[string]interface{}{
				"challenge_id": challenge.ID,
				"score":        result.Score,
				"auto":         auto,
			},
			CreatedAt: time.Now(),
		})
	}
}

func (m *SessionManager) publishExpired(userID string) func(domain.Challenge) {
	return func(challenge domain.Challenge) {
		if m.notifications == nil {
			return
		}
		m.notifications.Publish(domain.Event{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      domain.EventChallengeExpired,
			Payload:   map[string]interface{}{"challenge_id": challenge.ID},
			CreatedAt: time.Now(),
		})
	}
}
