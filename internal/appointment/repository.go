package appointment

import (
	"context"
)

// EventRecorder stores the audit trail of booking and cancellation outcomes.
type EventRecorder interface {
	InsertEvent(ctx context.Context, ev EventLog) error
	ListRecent(ctx context.Context, limit int) ([]EventLog, error)
}

// NopRecorder drops every event; used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) InsertEvent(context.Context, EventLog) error { return nil }

func (NopRecorder) ListRecent(context.Context, int) ([]EventLog, error) { return nil, nil }
