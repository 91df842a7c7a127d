package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*EventLog, error) {
	var ev EventLog
	var payload []byte

	err := row.Scan(
		&ev.ID,
		&ev.EventType,
		&ev.ConversationID,
		&ev.CalendarEvent,
		&ev.Outcome,
		&payload,
		&ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Payload = payload
	return &ev, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	id := ev.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (id, event_type, conversation_id, calendar_event_id, outcome, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, id, ev.EventType, ev.ConversationID, ev.CalendarEvent, ev.Outcome, []byte(ev.Payload), nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) ListRecent(ctx context.Context, limit int) ([]EventLog, error) {
	if limit <= 0 {
		limit = 50 // default
	}
	if limit > 500 {
		limit = 500 // max
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, conversation_id, calendar_event_id, outcome, payload, created_at
		FROM event_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		result = append(result, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
