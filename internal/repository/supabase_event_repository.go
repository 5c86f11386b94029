package repository

import (
	"context"
	"fmt"
	"time"

	"careerprep/internal/domain"

	"github.com/supabase-community/postgrest-go"
)

const eventPageSize = 100

// SupabaseEventRepository implements domain.EventSource by polling the
// notifications table for rows newer than the last one seen.
type SupabaseEventRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
	interval       time.Duration
	now            func() time.Time
}

func NewSupabaseEventRepository(supabaseClient domain.SupabaseClient, interval time.Duration, logger domain.Logger) *SupabaseEventRepository {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SupabaseEventRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
		interval:       interval,
		now:            time.Now,
	}
}

// Stream polls until ctx is done. Only notifications created after Stream is
// called are delivered.
func (r *SupabaseEventRepository) Stream(ctx context.Context) (<-chan domain.Event, error) {
	if r.supabaseClient.DB() == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	events := make(chan domain.Event)
	go func() {
		defer close(events)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		cursor := eventCursor{at: r.now().UTC()}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			batch, err := r.poll(ctx, cursor)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("Failed to poll notifications", "error", err)
				}
				continue
			}
			for _, ev := range batch {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
				cursor = cursor.advance(ev)
			}
		}
	}()
	return events, nil
}

// eventCursor is the (created_at, id) of the last row delivered. Rows sharing a
// timestamp are ordered by id so a page boundary never skips one.
type eventCursor struct {
	at time.Time
	id string
}

func (c eventCursor) advance(ev domain.Event) eventCursor {
	if ev.CreatedAt.After(c.at) || (ev.CreatedAt.Equal(c.at) && ev.ID > c.id) {
		return eventCursor{at: ev.CreatedAt, id: ev.ID}
	}
	return c
}

func (r *SupabaseEventRepository) poll(ctx context.Context, cursor eventCursor) ([]domain.Event, error) {
	client := r.supabaseClient.DB()
	at := cursor.at.UTC().Format(time.RFC3339Nano)
	query := client.From("notifications").Select("*", "", false)
	if cursor.id == "" {
		query = query.Gt("created_at", at)
	} else {
		query = query.Or(fmt.Sprintf("created_at.gt.%s,and(created_at.eq.%s,id.gt.%s)", at, at, cursor.id), "")
	}
	data, err := execute(ctx, query.
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Limit(eventPageSize, "").
		Execute)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.Event{
			ID:        getString(row, "id"),
			UserID:    getString(row, "user_id"),
			Type:      domain.EventType(getString(row, "type")),
			Payload:   getMap(row, "payload"),
			CreatedAt: getTime(row, "created_at"),
		})
	}
	return events, nil
}
