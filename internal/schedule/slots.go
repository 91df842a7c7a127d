package schedule

import "time"

// Slot is one fixed-length candidate appointment time.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Generation is the output of GenerateSlots for a single day.
type Generation struct {
	Duration time.Duration
	Windows  []TimeWindow
	Slots    []Slot
}

// GenerateSlots walks every window of date for t in order and emits a slot at
// each step-aligned start whose end stays within the window end plus the
// overhang. Slots overlap each other: the cursor advances by the step, not by
// the duration. maxSlots <= 0 means no cap.
func (p *Policy) GenerateSlots(date time.Time, t AppointmentType, maxSlots int) Generation {
	dur := p.Duration(t)
	gen := Generation{Duration: dur, Windows: p.WindowsFor(date, t)}

	step := p.Step
	if step <= 0 {
		step = DefaultStep
	}

	for _, w := range gen.Windows {
		limit := w.End.Add(p.Overhang)
		for cursor := p.alignUp(w.Start, step); !cursor.Add(dur).After(limit); cursor = cursor.Add(step) {
			if maxSlots > 0 && len(gen.Slots) >= maxSlots {
				return gen
			}
			gen.Slots = append(gen.Slots, Slot{Start: cursor, End: cursor.Add(dur)})
		}
	}
	return gen
}

// alignUp rounds t up to the next multiple of step counted from local midnight.
func (p *Policy) alignUp(t time.Time, step time.Duration) time.Time {
	offset := t.Sub(p.Day(t))
	if rem := offset % step; rem != 0 {
		return t.Add(step - rem)
	}
	return t
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
