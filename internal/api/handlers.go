package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/assistant"
	"github.com/hackgods/clinic-slot-scheduling/internal/availability"
	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
)

const (
	defaultAdminDays = 7
	maxAdminDays     = 60
	maxBodyBytes     = 1 << 20
)

type queryParser struct {
	loc *time.Location
	now func() time.Time
}

func (q queryParser) appointmentType(r *http.Request) schedule.AppointmentType {
	return schedule.ParseAppointmentType(r.URL.Query().Get("type"))
}

// date reads a YYYY-MM-DD query parameter in the clinic zone; blank is today.
func (q queryParser) date(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return q.now().In(q.loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, q.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return d, nil
}

func intParam(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func rangeAvailabilityHandler(resolver assistant.Availability, q queryParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := q.appointmentType(r)
		from, err := q.date(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		days, err := intParam(r, "days", assistant.DefaultRangeDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_days", err.Error())
			return
		}

		out, err := resolver.ResolveRange(r.Context(), t, from, days)
		if err != nil {
			handleError(w, fmt.Errorf("%w: %w", appointment.ErrBackend, err))
			return
		}
		if out == nil {
			out = []availability.DayAvailability{}
		}
		writeJSON(w, http.StatusOK, AvailabilityResponse{Type: string(t), Days: out})
	}
}

func nearestAvailabilityHandler(resolver assistant.Availability, q queryParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := q.appointmentType(r)
		from, err := q.date(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}

		day, err := resolver.ResolveNearest(r.Context(), t, from)
		if err != nil {
			handleError(w, fmt.Errorf("%w: %w", appointment.ErrBackend, err))
			return
		}
		writeJSON(w, http.StatusOK, NearestResponse{Type: string(t), Day: day})
	}
}

func dayAvailabilityHandler(resolver assistant.Availability, q queryParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := q.appointmentType(r)
		date, err := q.date(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		day, err := resolver.ResolveOneDay(r.Context(), t, date)
		if err != nil {
			handleError(w, fmt.Errorf("%w: %w", appointment.ErrBackend, err))
			return
		}
		writeJSON(w, http.StatusOK, day)
	}
}

func createAppointmentHandler(svc AppointmentService, sender notify.Sender, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		conf, err := svc.Book(r.Context(), appointment.BookingRequest{
			ConversationID: req.ConversationID,
			Type:           schedule.ParseAppointmentType(req.Type),
			Start:          req.Start,
			End:            req.End,
			Patient:        req.Patient,
		})
		if err != nil {
			handleError(w, err)
			return
		}

		resp := AppointmentResponse{Confirmation: conf}
		if req.Notify && strings.TrimSpace(req.Patient.Phone) != "" {
			body := conf.Text + "\n\n" + strings.Join(conf.Reminders, "\n")
			if _, err := sender.SendText(r.Context(), req.Patient.Phone, body); err != nil {
				logger.Warn().Err(err).
					Str("event_id", conf.EventID).
					Str("request_id", GetRequestID(r.Context())).
					Msg("failed to send booking confirmation")
			} else {
				resp.Notified = true
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelAppointmentRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		out, err := svc.Cancel(r.Context(), appointment.CancelRequest{
			Date:       req.Date,
			Time:       req.Time,
			NationalID: req.NationalID,
			Tolerance:  time.Duration(req.ToleranceMinutes) * time.Minute,
		})
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func chatHandler(chat ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "session_id and text are required")
			return
		}

		reply, err := chat.Reply(r.Context(), req.SessionID, req.Text)
		if err != nil {
			writeError(w, http.StatusBadGateway, "assistant_unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func calendarEventsHandler(gw calendar.Gateway, q queryParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := intParam(r, "days", defaultAdminDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_days", err.Error())
			return
		}
		if days <= 0 {
			days = defaultAdminDays
		}
		if days > maxAdminDays {
			days = maxAdminDays
		}

		from := q.now().In(q.loc)
		events, err := gw.ListEvents(r.Context(), from, from.AddDate(0, 0, days))
		if err != nil {
			handleError(w, fmt.Errorf("%w: %w", appointment.ErrBackend, err))
			return
		}
		if events == nil {
			events = []calendar.Event{}
		}
		writeJSON(w, http.StatusOK, CalendarEventsResponse{CalendarID: gw.CalendarID(), Events: events})
	}
}

func auditHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "limit", 50)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
			return
		}
		events, err := svc.RecentEvents(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if events == nil {
			events = []appointment.EventLog{}
		}
		writeJSON(w, http.StatusOK, AuditResponse{Events: events})
	}
}

// handleError maps core errors to HTTP statuses. The error code in the body
// is the same kind the audit log and metrics use.
func handleError(w http.ResponseWriter, err error) {
	var missing *appointment.MissingFieldsError
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "calendar is busy with another booking, please retry shortly")
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   appointment.Kind(err),
			Details: err.Error(),
			Fields:  missing.Fields,
		})
	case errors.Is(err, appointment.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, appointment.Kind(err), err.Error())
	case errors.Is(err, appointment.ErrPriorityActive),
		errors.Is(err, appointment.ErrPastTime),
		errors.Is(err, appointment.ErrBeforeMinimum),
		errors.Is(err, appointment.ErrExcludedPlan),
		errors.Is(err, appointment.ErrOutsideWindow):
		writeError(w, http.StatusUnprocessableEntity, appointment.Kind(err), err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, appointment.Kind(err), err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, appointment.Kind(err), err.Error())
	case errors.Is(err, appointment.ErrBackend):
		writeError(w, http.StatusBadGateway, appointment.Kind(err), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
