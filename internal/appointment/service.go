package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
)

const (
	DefaultLocation        = "Clínica Portoazul, piso 7, consultorio 707, Barranquilla"
	DefaultCancelTolerance = 10 * time.Minute

	// cancelSearchRadius is how far around the target time candidates are listed.
	cancelSearchRadius = 30 * time.Minute
)

var tracer = otel.Tracer("clinic.internal.appointment")

type Options struct {
	Location        string
	ExcludedPlans   []ExcludedPlan
	CancelRequireID bool
	Recorder        EventRecorder
	Metrics         *metrics.SchedulingMetrics
	Logger          zerolog.Logger
	Now             func() time.Time
}

type Service struct {
	policy   *schedule.Policy
	gateway  calendar.Gateway
	locker   redisclient.Locker
	recorder EventRecorder
	metrics  *metrics.SchedulingMetrics
	logger   zerolog.Logger
	now      func() time.Time

	location        string
	excluded        []ExcludedPlan
	cancelRequireID bool
}

func NewService(policy *schedule.Policy, gateway calendar.Gateway, locker redisclient.Locker, opts Options) *Service {
	if opts.Location == "" {
		opts.Location = DefaultLocation
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		policy:          policy,
		gateway:         gateway,
		locker:          locker,
		recorder:        opts.Recorder,
		metrics:         opts.Metrics,
		logger:          opts.Logger.With().Str("component", "appointment").Logger(),
		now:             opts.Now,
		location:        opts.Location,
		excluded:        opts.ExcludedPlans,
		cancelRequireID: opts.CancelRequireID,
	}
}

// Book re-validates the request from scratch and inserts the event. The
// busy-time check and the insert run under the calendar lock, so two
// concurrent bookings of one slot cannot both succeed.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Confirmation, error) {
	ctx, span := tracer.Start(ctx, "appointment.book")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.type", string(req.Type)))

	conf, err := s.book(ctx, req)
	kind := Kind(err)
	s.metrics.ObserveBooking(string(req.Type), kind)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.logger.Info().Err(err).
			Str("conversation_id", req.ConversationID).
			Str("type", string(req.Type)).
			Str("start", req.Start).
			Str("outcome", kind).
			Msg("booking rejected")
		s.logEvent(ctx, EventAppointmentRejected, req.ConversationID, "", kind, map[string]any{
			"type":  req.Type,
			"start": req.Start,
			"end":   req.End,
			"error": err.Error(),
		})
		return nil, err
	}

	s.logger.Info().
		Str("conversation_id", req.ConversationID).
		Str("event_id", conf.EventID).
		Str("type", string(conf.Type)).
		Time("start", conf.Start).
		Msg("appointment booked")
	s.logEvent(ctx, EventAppointmentBooked, req.ConversationID, conf.EventID, kind, map[string]any{
		"type":  conf.Type,
		"start": conf.Start,
		"end":   conf.End,
	})
	return conf, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Confirmation, error) {
	if req.Escalated {
		return nil, ErrPriorityActive
	}

	typ := req.Type
	loc := s.policy.Location

	start, err := parseInstant(req.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidTime, err)
	}
	var end time.Time
	if strings.TrimSpace(req.End) == "" {
		end = start.Add(s.policy.Duration(typ))
	} else if end, err = parseInstant(req.End, loc); err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrInvalidTime, err)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidTime, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	if start.Before(s.now()) {
		return nil, ErrPastTime
	}

	if minStart := s.policy.MinimumStart(typ); !minStart.IsZero() && start.Before(minStart) {
		return nil, fmt.Errorf("%w: earliest is %s", ErrBeforeMinimum, minStart.Format("2006-01-02"))
	}

	if missing := missingFields(typ, req.Patient); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	for _, plan := range s.excluded {
		if plan.Matches(req.Patient) {
			return nil, ErrExcludedPlan
		}
	}

	if !s.policy.AllowsWeekday(typ, start.Weekday()) || !s.policy.Contains(start, end, typ) {
		return nil, ErrOutsideWindow
	}

	var conf *Confirmation
	err = s.locker.WithCalendarLock(ctx, s.gateway.CalendarID(), func(lockCtx context.Context) error {
		began := time.Now()
		busy, err := s.gateway.QueryBusy(lockCtx, start, end)
		s.metrics.ObserveBusyQuery("booking", err != nil, time.Since(began).Seconds())
		if err != nil {
			return fmt.Errorf("%w: busy query: %w", ErrBackend, err)
		}
		for _, b := range busy {
			if schedule.Overlaps(start, end, b.Start, b.End) {
				return ErrSlotTaken
			}
		}

		ev, err := s.gateway.InsertEvent(lockCtx, calendar.NewEvent{
			Summary:     eventSummary(typ, req.Patient),
			Location:    s.location,
			Description: eventDescription(typ, req.Patient, req.ConversationID),
			Start:       start,
			End:         end,
		})
		if err != nil {
			return fmt.Errorf("%w: insert event: %w", ErrBackend, err)
		}

		conf = &Confirmation{
			EventID:   ev.ID,
			Link:      ev.Link,
			Start:     start,
			End:       end,
			Type:      typ,
			Location:  s.location,
			Text:      confirmationText(start, s.location),
			Reminders: append([]string(nil), defaultReminders...),
		}
		return nil
	})
	if err != nil {
		if Kind(err) == KindInternal {
			return nil, fmt.Errorf("%w: %w", ErrBackend, err)
		}
		return nil, err
	}
	return conf, nil
}

// Cancel deletes the timed event whose start is closest to the requested local
// date and time, within the tolerance. Matching is by time; with
// CancelRequireID the event description must also carry the national id.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*Cancellation, error) {
	ctx, span := tracer.Start(ctx, "appointment.cancel")
	defer span.End()

	out, err := s.cancel(ctx, req)
	kind := Kind(err)
	s.metrics.ObserveCancellation(kind)

	payload := map[string]any{"date": req.Date, "time": req.Time}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		payload["error"] = err.Error()
		s.logger.Info().Err(err).Str("date", req.Date).Str("time", req.Time).Str("outcome", kind).Msg("cancellation rejected")
		s.logEvent(ctx, EventCancelRejected, "", "", kind, payload)
		return nil, err
	}

	s.logger.Info().Str("event_id", out.EventID).Time("start", out.Start).Msg("appointment cancelled")
	s.logEvent(ctx, EventAppointmentCancelled, "", out.EventID, kind, payload)
	return out, nil
}

func (s *Service) cancel(ctx context.Context, req CancelRequest) (*Cancellation, error) {
	loc := s.policy.Location
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidTime, req.Date)
	}
	hour, minute, ok := normalizeClock(req.Time)
	if !ok {
		return nil, fmt.Errorf("%w: time %q", ErrInvalidTime, req.Time)
	}
	target := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)

	tolerance := req.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultCancelTolerance
	}

	events, err := s.gateway.ListEvents(ctx, target.Add(-cancelSearchRadius), target.Add(cancelSearchRadius))
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %w", ErrBackend, err)
	}

	var (
		best     *calendar.Event
		bestDiff time.Duration
	)
	for i := range events {
		ev := &events[i]
		if ev.AllDay {
			continue
		}
		diff := ev.Start.Sub(target).Abs()
		if diff > tolerance {
			continue
		}
		if s.cancelRequireID && !descriptionHasID(ev.Description, req.NationalID) {
			continue
		}
		if best == nil || diff < bestDiff {
			best, bestDiff = ev, diff
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}

	if err := s.gateway.DeleteEvent(ctx, best.ID); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: delete event: %w", ErrBackend, err)
	}
	return &Cancellation{EventID: best.ID, Summary: best.Summary, Start: best.Start}, nil
}

func descriptionHasID(description, nationalID string) bool {
	id := strings.TrimSpace(nationalID)
	return id != "" && strings.Contains(description, id)
}

// RecentEvents exposes the audit trail to the operator routes.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]EventLog, error) {
	events, err := s.recorder.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

func (s *Service) logEvent(ctx context.Context, eventType, conversationID, calendarEventID, outcome string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Outcome:   outcome,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if conversationID != "" {
		ev.ConversationID = &conversationID
	}
	if calendarEventID != "" {
		ev.CalendarEvent = &calendarEventID
	}

	if err := s.recorder.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to insert event log")
	}
}
