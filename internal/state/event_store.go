package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/stablevault/internal/types"
)

// StoredEvent is one row of vault_events.
type StoredEvent struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventLog writes every notification to vault_events. Write failures are logged, not returned,
// so a database outage never fails a vault operation.
type EventLog struct {
	Timeout time.Duration
}

func (l EventLog) Emit(ctx context.Context, ev types.Event) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := SaveEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("type", ev.EventType()).Msg("Failed to store event")
	}
}

func SaveEvent(ctx context.Context, ev types.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.EventType(), err)
	}
	_, err = DB.ExecContext(ctx, `INSERT INTO vault_events (event_type, payload) VALUES ($1, $2)`, ev.EventType(), payload)
	if err != nil {
		return fmt.Errorf("failed to store %s event: %w", ev.EventType(), err)
	}
	return nil
}

// GetRecentEvents returns the newest events, optionally of one type.
func GetRecentEvents(ctx context.Context, eventType string, limit int) ([]StoredEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := DB.QueryContext(ctx, `
		SELECT event_id, event_type, payload, created_at
		FROM vault_events
		WHERE $1 = '' OR event_type = $1
		ORDER BY event_id DESC
		LIMIT $2`, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e       StoredEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}
