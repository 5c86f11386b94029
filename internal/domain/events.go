package domain

import "time"

// EventType identifies a notification.
type EventType string

const (
	EventAny                EventType = "*"
	EventBadgeEarned        EventType = "badge_earned"
	EventChatMessage        EventType = "chat_message"
	EventChallengeSubmitted EventType = "challenge.submitted"
	EventChallengeExpired   EventType = "challenge.expired"
)

// Event is a single notification pushed to a user.
type Event struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      EventType              `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// EventHandler receives events from the notification channel.
type EventHandler func(Event)

// SubscriptionToken identifies one subscription on the notification channel.
type SubscriptionToken string
