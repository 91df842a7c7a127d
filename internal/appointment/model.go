package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

// BookingRequest carries the chosen slot and everything known about the
// patient. Start and End accept RFC3339 or naive clinic-local
// "2006-01-02T15:04[:05]"; a blank End is derived from the type duration.
type BookingRequest struct {
	ConversationID string                   `json:"conversation_id,omitempty"`
	Type           schedule.AppointmentType `json:"type"`
	Start          string                   `json:"start"`
	End            string                   `json:"end,omitempty"`
	Patient        session.Profile          `json:"patient"`
	Escalated      bool                     `json:"escalated,omitempty"`
}

// Confirmation is returned once the calendar accepted the event.
type Confirmation struct {
	EventID   string                   `json:"event_id"`
	Link      string                   `json:"link,omitempty"`
	Start     time.Time                `json:"start"`
	End       time.Time                `json:"end"`
	Type      schedule.AppointmentType `json:"type"`
	Location  string                   `json:"location"`
	Text      string                   `json:"text"`
	Reminders []string                 `json:"reminders"`
}

// CancelRequest identifies an appointment by its approximate local start.
type CancelRequest struct {
	Date       string        `json:"date"`
	Time       string        `json:"time"`
	Tolerance  time.Duration `json:"-"`
	NationalID string        `json:"national_id,omitempty"`
}

type Cancellation struct {
	EventID string    `json:"event_id"`
	Summary string    `json:"summary,omitempty"`
	Start   time.Time `json:"start"`
}

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventCancelRejected       = "CANCEL_REJECTED"
)

// EventLog is one row of the audit trail.
type EventLog struct {
	ID             uuid.UUID       `json:"id"`
	EventType      string          `json:"event_type"`
	ConversationID *string         `json:"conversation_id,omitempty"`
	CalendarEvent  *string         `json:"calendar_event_id,omitempty"`
	Outcome        string          `json:"outcome"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
