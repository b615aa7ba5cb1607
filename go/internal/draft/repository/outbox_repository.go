package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/marketdraft/go/internal/draft/outbox"
)

// OutboxRepository stores change events next to the writes that produced
// them. Insert runs inside the exclusive-region transaction; the fetch and
// mark methods serve the relay and run on the pool. Row ids are a bigserial
// so per-league publish order follows commit order.
type OutboxRepository struct {
	q db
}

func (r *OutboxRepository) Insert(ctx context.Context, leagueID uuid.UUID, eventType string, payload []byte) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO draft_outbox (event_id, league_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), leagueID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepository) FetchUnsent(ctx context.Context, limit int32) ([]outbox.Event, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, event_id, league_id, event_type, payload, created_at
		FROM draft_outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent events: %w", err)
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var ev outbox.Event
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.LeagueID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.q.Exec(ctx, `UPDATE draft_outbox SET sent_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}
