package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"careerprep/internal/domain"
)

const (
	eventStreamBuffer = 16
	heartbeatInterval = 15 * time.Second
)

// EventHandler streams the caller's notifications as server-sent events
type EventHandler struct {
	bus       domain.EventBus
	logger    domain.Logger
	heartbeat time.Duration
}

func NewEventHandler(bus domain.EventBus, logger domain.Logger) *EventHandler {
	return &EventHandler{
		bus:       bus,
		logger:    logger,
		heartbeat: heartbeatInterval,
	}
}

// Stream holds the connection open and writes one SSE message per event
// addressed to the user. Events with no user are broadcast.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events := make(chan domain.Event, eventStreamBuffer)
	token := h.bus.Subscribe(domain.EventAny, func(ev domain.Event) {
		if ev.UserID != "" && ev.UserID != user.ID {
			return
		}
		select {
		case events <- ev:
		default:
			h.logger.Debug("Dropping event for slow stream", "user_id", user.ID, "type", ev.Type)
		}
	})
	defer h.bus.Unsubscribe(token)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.Debug("Event stream opened", "user_id", user.ID)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("Event stream closed", "user_id", user.ID)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to encode event", err, "type", ev.Type)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
