package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlotsMondayMorning(t *testing.T) {
	p := DefaultPolicy(cot)
	gen := p.GenerateSlots(day(2025, time.November, 17), InPersonFollowUp, 0)

	require.Equal(t, 15*time.Minute, gen.Duration)
	require.Len(t, gen.Windows, 2)
	require.GreaterOrEqual(t, len(gen.Slots), 2)

	assert.Equal(t, at(2025, time.November, 17, 8, 0), gen.Slots[0].Start)
	assert.Equal(t, at(2025, time.November, 17, 8, 15), gen.Slots[0].End)
	assert.Equal(t, at(2025, time.November, 17, 8, 5), gen.Slots[1].Start)
	assert.Equal(t, at(2025, time.November, 17, 8, 20), gen.Slots[1].End)

	last := gen.Slots[len(gen.Slots)-1]
	assert.Equal(t, at(2025, time.November, 17, 17, 20), last.Start)
	assert.Equal(t, at(2025, time.November, 17, 17, 35), last.End)
}

func TestGenerateSlotsContainment(t *testing.T) {
	p := DefaultPolicy(cot)
	for d := 0; d < 14; d++ {
		date := day(2025, time.November, 17).AddDate(0, 0, d)
		for _, typ := range allTypes {
			gen := p.GenerateSlots(date, typ, 0)
			for _, s := range gen.Slots {
				assert.Equal(t, gen.Duration, s.End.Sub(s.Start))
				inside := false
				for _, w := range gen.Windows {
					if !s.Start.Before(w.Start) && !s.End.After(w.End.Add(p.Overhang)) {
						inside = true
						break
					}
				}
				assert.True(t, inside, "slot %s outside windows", s.Start)
			}
		}
	}
}

func TestGenerateSlotsMonotonicStep(t *testing.T) {
	p := DefaultPolicy(cot)
	gen := p.GenerateSlots(day(2025, time.November, 17), FirstVisit, 0)

	for _, w := range gen.Windows {
		var prev time.Time
		for _, s := range gen.Slots {
			if s.Start.Before(w.Start) || s.Start.After(w.End) {
				continue
			}
			if !prev.IsZero() {
				assert.Equal(t, p.Step, s.Start.Sub(prev))
			}
			prev = s.Start
		}
	}
}

func TestGenerateSlotsAlignsCursor(t *testing.T) {
	p := DefaultPolicy(cot)
	p.Weekly[time.Monday][ModeInPerson] = []ClockRange{{Start: Clock{8, 2}, End: Clock{9, 0}}}

	gen := p.GenerateSlots(day(2025, time.November, 17), InPersonFollowUp, 0)
	require.NotEmpty(t, gen.Slots)
	assert.Equal(t, at(2025, time.November, 17, 8, 5), gen.Slots[0].Start)
}

func TestGenerateSlotsHonoursMaxAcrossWindows(t *testing.T) {
	p := DefaultPolicy(cot)
	gen := p.GenerateSlots(day(2025, time.November, 17), InPersonFollowUp, 3)
	require.Len(t, gen.Slots, 3)
	assert.Equal(t, at(2025, time.November, 17, 8, 10), gen.Slots[2].Start)

	all := p.GenerateSlots(day(2025, time.November, 17), InPersonFollowUp, 0)
	capped := p.GenerateSlots(day(2025, time.November, 17), InPersonFollowUp, len(all.Slots)+10)
	assert.Equal(t, len(all.Slots), len(capped.Slots))
}

func TestGenerateSlotsClosedDay(t *testing.T) {
	p := DefaultPolicy(cot)
	gen := p.GenerateSlots(day(2025, time.November, 18), FirstVisit, 0)
	assert.Empty(t, gen.Windows)
	assert.Empty(t, gen.Slots)
	assert.Equal(t, FirstVisitDuration, gen.Duration)
}

func TestOverlaps(t *testing.T) {
	a := at(2025, time.November, 17, 8, 0)
	b := at(2025, time.November, 17, 8, 15)
	c := at(2025, time.November, 17, 8, 30)

	assert.True(t, Overlaps(a, c, b, c))
	assert.False(t, Overlaps(a, b, b, c))
	assert.False(t, Overlaps(b, c, a, b))
	assert.True(t, Overlaps(a, c, a.Add(time.Minute), b))
}
