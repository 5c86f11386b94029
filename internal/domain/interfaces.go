package domain

import (
	"context"
	"time"
)

// ChallengeSource issues the daily challenge and grades submissions.
// SubmitChallenge must be idempotent per (userID, challengeID): a repeated call
// returns the stored result.
type ChallengeSource interface {
	// FetchTodayChallenge returns nil, nil when no challenge exists for date.
	FetchTodayChallenge(ctx context.Context, userID string, date string) (*Challenge, error)
	SubmitChallenge(ctx context.Context, userID, challengeID, answer string) (*SubmissionResult, error)
}

// UsageSource holds the server-authoritative usage counts for the current period.
type UsageSource interface {
	FetchUsage(ctx context.Context, userID string) (map[string]int, error)
	// ConfirmUse records the use identified by useID and returns the period's
	// count for featureID. Confirming the same useID again does not count twice.
	ConfirmUse(ctx context.Context, userID, featureID, useID string) (int, error)
}

// SubscriptionSource resolves a user's tier.
type SubscriptionSource interface {
	FetchTier(ctx context.Context, userID string) (SubscriptionTier, error)
}

// EventSource streams inbound notifications. The channel is closed when the
// source stops. Events missed while disconnected are not replayed.
type EventSource interface {
	Stream(ctx context.Context) (<-chan Event, error)
}

// LocalStore is the persisted key-value state kept next to a session:
// the current challenge id, usage counters and submission markers.
type LocalStore interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// EntitlementChecker decides whether a user may use a feature right now.
type EntitlementChecker interface {
	Check(ctx context.Context, userID, featureID string) (Decision, error)
}

// EntitlementService is the quota surface exposed over HTTP.
type EntitlementService interface {
	EntitlementChecker
	// Use records one use and fails with *QuotaExceededError when denied.
	Use(ctx context.Context, userID, featureID string) (FeatureUsage, error)
	Summary(ctx context.Context, userID string) (*UsageSummary, error)
}

// ChallengeService runs each user's daily challenge session.
type ChallengeService interface {
	LoadToday(ctx context.Context, userID string) (ChallengeSessionView, error)
	Begin(userID string) (ChallengeSessionView, error)
	UpdateAnswer(userID, text string) (ChallengeSessionView, error)
	Submit(ctx context.Context, userID string) (*SubmissionResult, error)
	OthersSolutions(ctx context.Context, userID string) (Decision, error)
	Snapshot(userID string) ChallengeSessionView
}

// EventBus delivers notifications to subscribers.
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) SubscriptionToken
	Unsubscribe(token SubscriptionToken)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetLocalStatePath() string
	GetChallengeDuration() int
	GetTickInterval() time.Duration
	GetNetworkTimeout() time.Duration
	GetRetryMaxAttempts() int
	GetRetryBaseDelay() time.Duration
	GetEventPollInterval() time.Duration
	GetAllowedOrigins() []string
}
