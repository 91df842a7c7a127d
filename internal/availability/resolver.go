package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
)

const (
	DefaultWorkers            = 3
	DefaultNearestHorizonDays = 180
	DefaultMaxRangeDays       = 180

	// oneDaySlotCap bounds the free slots read back to a patient for one day.
	// It applies after past and busy slots are dropped.
	oneDaySlotCap = 60

	nearestChunkDays = 7
)

var tracer = otel.Tracer("clinic.internal.availability")

// DayAvailability is the free time of one day for one appointment type.
// RequestedDate is set only when the asked-for day was before the earliest
// bookable day and Date was moved forward.
type DayAvailability struct {
	Date          time.Time
	RequestedDate time.Time
	Duration      time.Duration
	FreeSlots     []schedule.Slot
}

// Moved reports whether Date differs from the day that was asked for.
func (d DayAvailability) Moved() bool { return !d.RequestedDate.IsZero() }

func (d DayAvailability) MarshalJSON() ([]byte, error) {
	slots := d.FreeSlots
	if slots == nil {
		slots = []schedule.Slot{}
	}
	var requested string
	if d.Moved() {
		requested = d.RequestedDate.Format("2006-01-02")
	}
	return json.Marshal(struct {
		Date            string          `json:"date"`
		RequestedDate   string          `json:"requested_date,omitempty"`
		DurationMinutes int             `json:"duration_minutes"`
		FreeSlots       []schedule.Slot `json:"free_slots"`
	}{
		Date:            d.Date.Format("2006-01-02"),
		RequestedDate:   requested,
		DurationMinutes: int(d.Duration / time.Minute),
		FreeSlots:       slots,
	})
}

type Options struct {
	Workers            int
	NearestHorizonDays int
	MaxRangeDays       int
	Metrics            *metrics.SchedulingMetrics
	Logger             zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Resolver combines the weekly policy, the slot generator and the calendar's
// busy time into free slots. It holds no state between calls.
type Resolver struct {
	policy  *schedule.Policy
	gateway calendar.Gateway
	metrics *metrics.SchedulingMetrics
	logger  zerolog.Logger
	now     func() time.Time

	workers        int
	nearestHorizon int
	maxRangeDays   int
}

func NewResolver(policy *schedule.Policy, gateway calendar.Gateway, opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.NearestHorizonDays <= 0 {
		opts.NearestHorizonDays = DefaultNearestHorizonDays
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = DefaultMaxRangeDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		policy:         policy,
		gateway:        gateway,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With().Str("component", "availability").Logger(),
		now:            opts.Now,
		workers:        opts.Workers,
		nearestHorizon: opts.NearestHorizonDays,
		maxRangeDays:   opts.MaxRangeDays,
	}
}

// ResolveRange returns the days in [from, from+numDays) that still have free
// slots, sorted by date. from is clamped up to the earliest bookable day for t.
// A day whose busy query fails is logged and left out.
func (r *Resolver) ResolveRange(ctx context.Context, t schedule.AppointmentType, from time.Time, numDays int) ([]DayAvailability, error) {
	ctx, span := tracer.Start(ctx, "availability.resolve_range")
	defer span.End()

	if numDays <= 0 {
		numDays = 1
	}
	if numDays > r.maxRangeDays {
		numDays = r.maxRangeDays
	}
	span.SetAttributes(attribute.String("appointment.type", string(t)), attribute.Int("days", numDays))

	days, err := r.scan(ctx, t, r.clamp(t, from), numDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return days, nil
}

// ResolveNearest scans forward from from until a day with a free slot turns up
// or the horizon runs out, and returns that day trimmed to its first slot.
// A nil result with a nil error means nothing is free within the horizon.
func (r *Resolver) ResolveNearest(ctx context.Context, t schedule.AppointmentType, from time.Time) (*DayAvailability, error) {
	ctx, span := tracer.Start(ctx, "availability.resolve_nearest")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.type", string(t)))

	start := r.clamp(t, from)
	for scanned := 0; scanned < r.nearestHorizon; scanned += nearestChunkDays {
		n := min(nearestChunkDays, r.nearestHorizon-scanned)
		days, err := r.scan(ctx, t, start.AddDate(0, 0, scanned), n)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if len(days) > 0 {
			first := days[0]
			first.FreeSlots = first.FreeSlots[:1]
			span.SetAttributes(attribute.String("date", first.Date.Format("2006-01-02")))
			return &first, nil
		}
	}
	return nil, nil
}

// ResolveOneDay returns the free slots of a single day, capped for display.
// A day before the earliest bookable one is answered for that earliest day
// with RequestedDate recording the original. Unlike the ranged scans, a
// calendar failure is returned to the caller.
func (r *Resolver) ResolveOneDay(ctx context.Context, t schedule.AppointmentType, date time.Time) (DayAvailability, error) {
	ctx, span := tracer.Start(ctx, "availability.resolve_one_day")
	defer span.End()

	requested := r.policy.Day(date)
	day := r.clamp(t, requested)
	span.SetAttributes(attribute.String("appointment.type", string(t)), attribute.String("date", day.Format("2006-01-02")))

	empty := DayAvailability{Date: day, Duration: r.policy.Duration(t)}
	if !day.Equal(requested) {
		empty.RequestedDate = requested
		span.SetAttributes(attribute.String("requested_date", requested.Format("2006-01-02")))
	}
	if !r.policy.AllowsWeekday(t, day.Weekday()) {
		return empty, nil
	}

	avail, err := r.resolveDay(ctx, t, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return empty, fmt.Errorf("availability: %s: %w", day.Format("2006-01-02"), err)
	}
	avail.RequestedDate = empty.RequestedDate
	if len(avail.FreeSlots) > oneDaySlotCap {
		avail.FreeSlots = avail.FreeSlots[:oneDaySlotCap]
	}
	return avail, nil
}

func (r *Resolver) clamp(t schedule.AppointmentType, from time.Time) time.Time {
	start := r.policy.Day(from)
	if earliest := r.policy.EarliestDay(t, r.now()); start.Before(earliest) {
		start = earliest
	}
	return start
}

// scan resolves numDays consecutive days from start with at most r.workers
// busy queries in flight.
func (r *Resolver) scan(ctx context.Context, t schedule.AppointmentType, start time.Time, numDays int) ([]DayAvailability, error) {
	var (
		mu   sync.Mutex
		days []DayAvailability
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < numDays; i++ {
		date := start.AddDate(0, 0, i)
		if !r.policy.AllowsWeekday(t, date.Weekday()) {
			continue
		}
		g.Go(func() error {
			avail, err := r.resolveDay(gctx, t, date)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.metrics.ObserveSkippedDay(string(t))
				r.logger.Warn().Err(err).
					Str("type", string(t)).
					Str("date", date.Format("2006-01-02")).
					Msg("busy query failed, skipping day")
				return nil
			}
			if len(avail.FreeSlots) == 0 {
				return nil
			}
			mu.Lock()
			days = append(days, avail)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// resolveDay filters every candidate slot of date; callers cap the free
// slots afterwards.
func (r *Resolver) resolveDay(ctx context.Context, t schedule.AppointmentType, date time.Time) (DayAvailability, error) {
	gen := r.policy.GenerateSlots(date, t, 0)
	avail := DayAvailability{Date: r.policy.Day(date), Duration: gen.Duration}
	if len(gen.Windows) == 0 || len(gen.Slots) == 0 {
		return avail, nil
	}

	spanStart := gen.Windows[0].Start
	spanEnd := gen.Windows[len(gen.Windows)-1].End.Add(r.policy.Overhang)

	began := time.Now()
	busy, err := r.gateway.QueryBusy(ctx, spanStart, spanEnd)
	r.metrics.ObserveBusyQuery("resolver", err != nil, time.Since(began).Seconds())
	if err != nil {
		return avail, err
	}

	now := r.now()
	for _, slot := range gen.Slots {
		if slot.Start.Before(now) {
			continue
		}
		if overlapsAny(slot, busy) {
			continue
		}
		avail.FreeSlots = append(avail.FreeSlots, slot)
	}
	return avail, nil
}

func overlapsAny(slot schedule.Slot, busy []calendar.BusyInterval) bool {
	for _, b := range busy {
		if schedule.Overlaps(slot.Start, slot.End, b.Start, b.End) {
			return true
		}
	}
	return false
}
