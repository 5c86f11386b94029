package service

import (
	"context"
	"sync"

	"careerprep/internal/domain"

	"github.com/google/uuid"
)

const defaultSubscriberBuffer = 64

type subscriber struct {
	eventType domain.EventType
	handler   domain.EventHandler
	queue     chan domain.Event
}

// NotificationChannel fans events out to subscribers.
//
// Each subscriber has its own queue and goroutine, so handlers never block the
// publisher or each other and see events in publish order. Delivery is
// at-most-once: a full queue drops the event, and nothing is replayed.
type NotificationChannel struct {
	mu     sync.RWMutex
	subs   map[domain.SubscriptionToken]*subscriber
	buffer int
	logger domain.Logger
}

// NewNotificationChannel creates an empty channel.
func NewNotificationChannel(logger domain.Logger) *NotificationChannel {
	return &NotificationChannel{
		subs:   make(map[domain.SubscriptionToken]*subscriber),
		buffer: defaultSubscriberBuffer,
		logger: logger,
	}
}

// Subscribe registers handler for eventType; domain.EventAny receives every event.
func (c *NotificationChannel) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionToken {
	sub := &subscriber{
		eventType: eventType,
		handler:   handler,
		queue:     make(chan domain.Event, c.buffer),
	}
	token := domain.SubscriptionToken(uuid.NewString())

	c.mu.Lock()
	c.subs[token] = sub
	c.mu.Unlock()

	go func() {
		for ev := range sub.queue {
			sub.handler(ev)
		}
	}()
	return token
}

// Unsubscribe removes a subscription. Events already queued are still delivered.
func (c *NotificationChannel) Unsubscribe(token domain.SubscriptionToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subs[token]
	if !ok {
		return
	}
	delete(c.subs, token)
	close(sub.queue)
}

// Publish queues ev for every matching subscriber without blocking.
func (c *NotificationChannel) Publish(ev domain.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for token, sub := range c.subs {
		if sub.eventType != domain.EventAny && sub.eventType != ev.Type {
			continue
		}
		select {
		case sub.queue <- ev:
		default:
			c.logger.Debug("Dropping notification for slow subscriber", "token", token, "type", ev.Type, "user_id", ev.UserID)
		}
	}
}

// Run forwards events from source until ctx is done or the source closes.
func (c *NotificationChannel) Run(ctx context.Context, source domain.EventSource) error {
	events, err := source.Stream(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Publish(ev)
		}
	}
}

// Close removes every subscription.
func (c *NotificationChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for token, sub := range c.subs {
		delete(c.subs, token)
		close(sub.queue)
	}
}
