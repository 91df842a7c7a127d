package session

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
)

// MaxHistory bounds the conversation turns kept per session.
const MaxHistory = 40

var ErrSessionNotFound = errors.New("session not found")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the per-conversation state. The calendar stays the source of
// truth for appointments; nothing here is authoritative about bookings.
type Session struct {
	ID          string                   `json:"id"`
	Profile     Profile                  `json:"profile"`
	Type        schedule.AppointmentType `json:"type,omitempty"`
	OfferedSlot *schedule.Slot           `json:"offered_slot,omitempty"`
	Escalated   bool                     `json:"escalated,omitempty"`
	History     []Message                `json:"history,omitempty"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// Append adds a turn and drops the oldest ones past MaxHistory.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]Message(nil), s.History[over:]...)
	}
}

func (s *Session) clone() *Session {
	c := *s
	c.History = append([]Message(nil), s.History...)
	if s.OfferedSlot != nil {
		slot := *s.OfferedSlot
		c.OfferedSlot = &slot
	}
	return &c
}

// Store persists sessions keyed by conversation id. Expiry is the
// implementation's or the caller's concern, never the session's.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Load returns the stored session for id or a fresh one.
func Load(ctx context.Context, store Store, id string) (*Session, error) {
	s, err := store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return &Session{ID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
