package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cot = time.FixedZone("COT", -5*3600)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, cot)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, cot)
}

var allTypes = []AppointmentType{FirstVisit, InPersonFollowUp, VirtualFollowUp, GuidedBiopsy, AppointmentType("walk_in")}

func TestWindowsForTuesdayIsClosed(t *testing.T) {
	p := DefaultPolicy(cot)
	tuesday := day(2025, time.November, 18)
	require.Equal(t, time.Tuesday, tuesday.Weekday())

	for week := 0; week < 8; week++ {
		d := tuesday.AddDate(0, 0, 7*week)
		for _, typ := range allTypes {
			assert.Empty(t, p.WindowsFor(d, typ), "%s %s", d.Format("2006-01-02"), typ)
		}
	}
}

func TestWindowsForWeekendIsClosed(t *testing.T) {
	p := DefaultPolicy(cot)
	for _, d := range []time.Time{day(2025, time.November, 22), day(2025, time.November, 23)} {
		for _, typ := range allTypes {
			assert.Empty(t, p.WindowsFor(d, typ))
		}
	}
}

func TestWindowsForMonday(t *testing.T) {
	p := DefaultPolicy(cot)
	monday := day(2025, time.November, 17)

	windows := p.WindowsFor(monday, InPersonFollowUp)
	require.Len(t, windows, 2)
	assert.Equal(t, at(2025, time.November, 17, 8, 0), windows[0].Start)
	assert.Equal(t, at(2025, time.November, 17, 11, 30), windows[0].End)
	assert.Equal(t, at(2025, time.November, 17, 14, 0), windows[1].Start)
	assert.Equal(t, at(2025, time.November, 17, 17, 30), windows[1].End)

	assert.Empty(t, p.WindowsFor(monday, VirtualFollowUp))
}

func TestWindowsForMidweekAfternoon(t *testing.T) {
	p := DefaultPolicy(cot)
	for _, d := range []time.Time{day(2025, time.November, 19), day(2025, time.November, 20)} {
		windows := p.WindowsFor(d, FirstVisit)
		require.Len(t, windows, 1)
		assert.Equal(t, 14, windows[0].Start.Hour())
		assert.Equal(t, MidweekAfternoonEnd.Hour, windows[0].End.Hour())
		assert.Equal(t, MidweekAfternoonEnd.Minute, windows[0].End.Minute())
		assert.Empty(t, p.WindowsFor(d, VirtualFollowUp))
	}
}

func TestWindowsForFriday(t *testing.T) {
	p := DefaultPolicy(cot)
	friday := day(2025, time.November, 21)

	inPerson := p.WindowsFor(friday, GuidedBiopsy)
	require.Len(t, inPerson, 1)
	assert.Equal(t, at(2025, time.November, 21, 8, 0), inPerson[0].Start)
	assert.Equal(t, at(2025, time.November, 21, 11, 30), inPerson[0].End)

	virtual := p.WindowsFor(friday, VirtualFollowUp)
	require.Len(t, virtual, 1)
	assert.Equal(t, at(2025, time.November, 21, 14, 0), virtual[0].Start)
	assert.Equal(t, at(2025, time.November, 21, 16, 30), virtual[0].End)
}

func TestUnknownTypeUsesInPersonRules(t *testing.T) {
	p := DefaultPolicy(cot)
	monday := day(2025, time.November, 17)
	assert.Equal(t, p.WindowsFor(monday, InPersonFollowUp), p.WindowsFor(monday, AppointmentType("walk_in")))
	assert.Equal(t, InPersonFollowUpDuration, p.Duration(AppointmentType("walk_in")))
}

func TestContainsAllowsOverhang(t *testing.T) {
	p := DefaultPolicy(cot)

	assert.True(t, p.Contains(at(2025, time.November, 17, 8, 0), at(2025, time.November, 17, 8, 15), InPersonFollowUp))
	assert.True(t, p.Contains(at(2025, time.November, 17, 11, 20), at(2025, time.November, 17, 11, 35), InPersonFollowUp))
	assert.False(t, p.Contains(at(2025, time.November, 17, 11, 25), at(2025, time.November, 17, 11, 40), InPersonFollowUp))
	assert.False(t, p.Contains(at(2025, time.November, 17, 7, 55), at(2025, time.November, 17, 8, 10), InPersonFollowUp))
	assert.False(t, p.Contains(at(2025, time.November, 18, 8, 0), at(2025, time.November, 18, 8, 15), InPersonFollowUp))
	assert.False(t, p.Contains(at(2025, time.November, 17, 14, 0), at(2025, time.November, 17, 14, 15), VirtualFollowUp))
}

func TestEarliestDayAppliesFloors(t *testing.T) {
	p := DefaultPolicy(cot)
	p.MinBookingDate = day(2025, time.November, 12)
	p.Floors[VirtualFollowUp] = Floor{From: day(2025, time.December, 1), Weekdays: []time.Weekday{time.Friday}}

	now := at(2025, time.November, 3, 9, 0)
	assert.Equal(t, day(2025, time.November, 12), p.EarliestDay(FirstVisit, now))
	assert.Equal(t, day(2025, time.December, 1), p.EarliestDay(VirtualFollowUp, now))

	later := at(2026, time.January, 5, 9, 0)
	assert.Equal(t, day(2026, time.January, 5), p.EarliestDay(VirtualFollowUp, later))

	assert.Equal(t, day(2025, time.December, 1), p.MinimumStart(VirtualFollowUp))
	assert.Equal(t, day(2025, time.November, 12), p.MinimumStart(GuidedBiopsy))

	assert.True(t, p.AllowsWeekday(VirtualFollowUp, time.Friday))
	assert.False(t, p.AllowsWeekday(VirtualFollowUp, time.Monday))
	assert.True(t, p.AllowsWeekday(FirstVisit, time.Monday))
}

func TestParseAppointmentType(t *testing.T) {
	cases := map[string]AppointmentType{
		"first_visit":                  FirstVisit,
		"virtual-follow-up":            VirtualFollowUp,
		"Primera vez":                  FirstVisit,
		"control virtual":              VirtualFollowUp,
		"Control en línea":             VirtualFollowUp,
		"Biopsia guiada por ecografía": GuidedBiopsy,
		"control presencial":           InPersonFollowUp,
		"":                             InPersonFollowUp,
		"something the bot made up":    InPersonFollowUp,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseAppointmentType(in), in)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "bolivar", Fold("  Bolívar "))
	assert.Equal(t, "medico general", Fold("MÉDICO\tgeneral"))
}
