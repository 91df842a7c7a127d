package schedule

import (
	"time"
)

const (
	// DefaultStep is the granularity of candidate start times.
	DefaultStep = 5 * time.Minute
	// DefaultOverhang lets a slot end this much past its window end.
	DefaultOverhang = 5 * time.Minute
)

// Wednesday and Thursday afternoons close at 16:30. Older rule sets used 17:30.
var MidweekAfternoonEnd = Clock{Hour: 16, Minute: 30}

// Clock is a wall-clock time of day in the clinic zone.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

type ClockRange struct {
	Start Clock
	End   Clock
}

// TimeWindow is one contiguous bookable block on a single day.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Floor restricts when an appointment type becomes bookable.
type Floor struct {
	// From is the first bookable date; zero means no floor.
	From time.Time
	// Weekdays limits bookable days; empty means every day with windows.
	Weekdays []time.Weekday
}

// Policy is the clinic's weekly rule set. Weekly is keyed by weekday and then
// by mode; a missing entry means the clinic is closed for that mode.
type Policy struct {
	Location       *time.Location
	Step           time.Duration
	Overhang       time.Duration
	Weekly         map[time.Weekday]map[Mode][]ClockRange
	Durations      map[AppointmentType]time.Duration
	MinBookingDate time.Time
	Floors         map[AppointmentType]Floor
}

var (
	morning          = ClockRange{Start: Clock{8, 0}, End: Clock{11, 30}}
	afternoon        = ClockRange{Start: Clock{14, 0}, End: Clock{17, 30}}
	midweekAfternoon = ClockRange{Start: Clock{14, 0}, End: MidweekAfternoonEnd}
	virtualAfternoon = ClockRange{Start: Clock{14, 0}, End: Clock{16, 30}}
)

// DefaultPolicy returns the clinic's current weekly schedule in loc.
// Tuesdays and weekends are closed.
func DefaultPolicy(loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	return &Policy{
		Location: loc,
		Step:     DefaultStep,
		Overhang: DefaultOverhang,
		Weekly: map[time.Weekday]map[Mode][]ClockRange{
			time.Monday: {
				ModeInPerson: {morning, afternoon},
			},
			time.Wednesday: {
				ModeInPerson: {midweekAfternoon},
			},
			time.Thursday: {
				ModeInPerson: {midweekAfternoon},
			},
			time.Friday: {
				ModeInPerson: {morning},
				ModeVirtual:  {virtualAfternoon},
			},
		},
		Durations: map[AppointmentType]time.Duration{
			FirstVisit:       FirstVisitDuration,
			InPersonFollowUp: InPersonFollowUpDuration,
			VirtualFollowUp:  VirtualFollowUpDuration,
			GuidedBiopsy:     GuidedBiopsyDuration,
		},
		Floors: map[AppointmentType]Floor{
			VirtualFollowUp: {Weekdays: []time.Weekday{time.Friday}},
		},
	}
}

// Duration returns the appointment length for t.
func (p *Policy) Duration(t AppointmentType) time.Duration {
	if d, ok := p.Durations[t]; ok && d > 0 {
		return d
	}
	return InPersonFollowUpDuration
}

// Day returns local midnight of the calendar day containing t.
func (p *Policy) Day(t time.Time) time.Time {
	t = t.In(p.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.Location)
}

// WindowsFor returns the bookable windows of date for t, in clock order.
// An empty result means nothing is bookable that day; it is not an error.
func (p *Policy) WindowsFor(date time.Time, t AppointmentType) []TimeWindow {
	day := p.Day(date)
	ranges := p.Weekly[day.Weekday()][t.Mode()]
	if len(ranges) == 0 {
		return nil
	}
	windows := make([]TimeWindow, 0, len(ranges))
	for _, r := range ranges {
		w := TimeWindow{Start: r.Start.on(day), End: r.End.on(day)}
		if w.End.After(w.Start) {
			windows = append(windows, w)
		}
	}
	return windows
}

// Contains reports whether [start, end) fits inside one window of its day,
// allowing the same overhang the slot generator uses.
func (p *Policy) Contains(start, end time.Time, t AppointmentType) bool {
	for _, w := range p.WindowsFor(start, t) {
		if !start.Before(w.Start) && !end.After(w.End.Add(p.Overhang)) {
			return true
		}
	}
	return false
}

// EarliestDay is the first day t may be booked on, given the current time:
// today, the global minimum date or the type floor, whichever is latest.
func (p *Policy) EarliestDay(t AppointmentType, now time.Time) time.Time {
	earliest := p.Day(now)
	if !p.MinBookingDate.IsZero() {
		if minDay := p.Day(p.MinBookingDate); minDay.After(earliest) {
			earliest = minDay
		}
	}
	if f, ok := p.Floors[t]; ok && !f.From.IsZero() {
		if from := p.Day(f.From); from.After(earliest) {
			earliest = from
		}
	}
	return earliest
}

// MinimumStart is the earliest instant a booking of t may start, ignoring now.
// The zero time means no minimum is configured.
func (p *Policy) MinimumStart(t AppointmentType) time.Time {
	var floor time.Time
	if !p.MinBookingDate.IsZero() {
		floor = p.Day(p.MinBookingDate)
	}
	if f, ok := p.Floors[t]; ok && !f.From.IsZero() {
		if from := p.Day(f.From); from.After(floor) {
			floor = from
		}
	}
	return floor
}

// AllowsWeekday applies the type floor's weekday subset.
func (p *Policy) AllowsWeekday(t AppointmentType, wd time.Weekday) bool {
	f, ok := p.Floors[t]
	if !ok || len(f.Weekdays) == 0 {
		return true
	}
	for _, d := range f.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}
