package calendar

import (
	"context"
	"errors"
	"time"
)

var ErrEventNotFound = errors.New("calendar: event not found")

// BusyInterval is an occupied span on the calendar, converted to the clinic zone.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event is a calendar entry as listed by the backend. AllDay events carry
// midnight-to-midnight Start/End.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Link        string    `json:"link,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
}

// NewEvent is the payload for InsertEvent.
type NewEvent struct {
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// Gateway is the narrow view of the external calendar the scheduler needs.
type Gateway interface {
	CalendarID() string
	QueryBusy(ctx context.Context, timeMin, timeMax time.Time) ([]BusyInterval, error)
	InsertEvent(ctx context.Context, ev NewEvent) (Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
}
