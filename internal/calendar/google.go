package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	listPageSize   = 50
	defaultTimeout = 15 * time.Second
)

type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	CredentialsJSON string
	Timeout         time.Duration
	Location        *time.Location
}

// GoogleGateway talks to Google Calendar v3. Each call gets its own deadline;
// nothing is retried.
type GoogleGateway struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewGoogleGateway builds the service from cfg credentials. Extra options are
// appended last, so tests can point the client at a local server.
func NewGoogleGateway(ctx context.Context, cfg GoogleConfig, logger zerolog.Logger, extra ...option.ClientOption) (*GoogleGateway, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create google service: %w", err)
	}

	return &GoogleGateway{
		svc:        svc,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		timeout:    cfg.Timeout,
		logger:     logger.With().Str("component", "google_calendar").Logger(),
	}, nil
}

func (g *GoogleGateway) CalendarID() string { return g.calendarID }

func (g *GoogleGateway) QueryBusy(ctx context.Context, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  timeMin.Format(time.RFC3339),
		TimeMax:  timeMax.Format(time.RFC3339),
		TimeZone: g.loc.String(),
		Items:    []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar: freebusy response missing calendar %q", g.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("calendar: freebusy %s: %s", cal.Errors[0].Domain, cal.Errors[0].Reason)
	}

	busy := make([]BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy end %q: %w", period.End, err)
		}
		busy = append(busy, BusyInterval{Start: start.In(g.loc), End: end.In(g.loc)})
	}
	return busy, nil
}

func (g *GoogleGateway) InsertEvent(ctx context.Context, ev NewEvent) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := g.svc.Events.Insert(g.calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.In(g.loc).Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.In(g.loc).Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
	}).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}

	out, err := g.toEvent(created)
	if err != nil {
		// The event exists; fall back to the requested times.
		g.logger.Warn().Err(err).Str("event_id", created.Id).Msg("unparseable times on created event")
		out = Event{ID: created.Id, Summary: created.Summary, Link: created.HtmlLink, Start: ev.Start, End: ev.End}
	}
	return out, nil
}

func (g *GoogleGateway) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.svc.Events.Delete(g.calendarID, eventID).SendUpdates("none").Context(ctx).Do()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return ErrEventNotFound
	}
	return fmt.Errorf("calendar: delete event %s: %w", eventID, err)
}

func (g *GoogleGateway) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		events    []Event
		pageToken string
	)
	for {
		call := g.svc.Events.List(g.calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("calendar: list events: %w", err)
		}
		for _, item := range page.Items {
			ev, err := g.toEvent(item)
			if err != nil {
				g.logger.Warn().Err(err).Str("event_id", item.Id).Msg("skipping event with unparseable times")
				continue
			}
			events = append(events, ev)
		}
		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

func (g *GoogleGateway) toEvent(item *gcal.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Link:        item.HtmlLink,
	}
	if item.Start == nil || item.End == nil {
		return ev, errors.New("missing start or end")
	}
	var err error
	if item.Start.DateTime == "" {
		ev.AllDay = true
		if ev.Start, err = time.ParseInLocation("2006-01-02", item.Start.Date, g.loc); err != nil {
			return ev, err
		}
		if ev.End, err = time.ParseInLocation("2006-01-02", item.End.Date, g.loc); err != nil {
			return ev, err
		}
		return ev, nil
	}
	if ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
		return ev, err
	}
	if ev.End, err = time.Parse(time.RFC3339, item.End.DateTime); err != nil {
		return ev, err
	}
	ev.Start = ev.Start.In(g.loc)
	ev.End = ev.End.In(g.loc)
	return ev, nil
}
