package api

import (
	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/availability"
	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

type CreateAppointmentRequest struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Type           string          `json:"type"`
	Start          string          `json:"start"`
	End            string          `json:"end,omitempty"`
	Patient        session.Profile `json:"patient"`
	// Notify sends the confirmation text to Patient.Phone over WhatsApp.
	Notify bool `json:"notify,omitempty"`
}

type AppointmentResponse struct {
	*appointment.Confirmation
	Notified bool `json:"notified"`
}

type CancelAppointmentRequest struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	NationalID       string `json:"national_id,omitempty"`
	ToleranceMinutes int    `json:"tolerance_minutes,omitempty"`
}

type AvailabilityResponse struct {
	Type string                         `json:"type"`
	Days []availability.DayAvailability `json:"days"`
}

type NearestResponse struct {
	Type string                        `json:"type"`
	Day  *availability.DayAvailability `json:"day"`
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type CalendarEventsResponse struct {
	CalendarID string           `json:"calendar_id"`
	Events     []calendar.Event `json:"events"`
}

type AuditResponse struct {
	Events []appointment.EventLog `json:"events"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}
