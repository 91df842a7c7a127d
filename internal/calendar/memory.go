package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGateway keeps events in process. It backs CALENDAR_BACKEND=memory and
// the tests; BusyHook lets callers fail or slow down busy queries.
type MemoryGateway struct {
	mu         sync.Mutex
	calendarID string
	loc        *time.Location
	events     map[string]Event
	inserts    int

	// BusyHook, when set, runs before every QueryBusy and aborts it on error.
	BusyHook func(timeMin, timeMax time.Time) error
}

func NewMemoryGateway(calendarID string, loc *time.Location) *MemoryGateway {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryGateway{
		calendarID: calendarID,
		loc:        loc,
		events:     make(map[string]Event),
	}
}

func (m *MemoryGateway) CalendarID() string { return m.calendarID }

// Add stores an event directly, bypassing insert accounting.
func (m *MemoryGateway) Add(ev Event) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Start = ev.Start.In(m.loc)
	ev.End = ev.End.In(m.loc)
	m.events[ev.ID] = ev
	return ev
}

// Inserts returns how many times InsertEvent succeeded.
func (m *MemoryGateway) Inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

func (m *MemoryGateway) QueryBusy(ctx context.Context, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.BusyHook != nil {
		if err := m.BusyHook(timeMin, timeMax); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var busy []BusyInterval
	for _, ev := range m.sortedLocked() {
		if ev.Start.Before(timeMax) && timeMin.Before(ev.End) {
			busy = append(busy, BusyInterval{Start: ev.Start, End: ev.End})
		}
	}
	return busy, nil
}

func (m *MemoryGateway) InsertEvent(ctx context.Context, ev NewEvent) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if !ev.End.After(ev.Start) {
		return Event{}, fmt.Errorf("calendar: event end %s is not after start %s", ev.End, ev.Start)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	created := Event{
		ID:          id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Link:        "memory://" + m.calendarID + "/" + id,
		Start:       ev.Start.In(m.loc),
		End:         ev.End.In(m.loc),
	}
	m.events[id] = created
	m.inserts++
	return created, nil
}

func (m *MemoryGateway) DeleteEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return ErrEventNotFound
	}
	delete(m.events, eventID)
	return nil
}

func (m *MemoryGateway) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.sortedLocked() {
		if ev.Start.Before(timeMax) && timeMin.Before(ev.End) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryGateway) sortedLocked() []Event {
	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
