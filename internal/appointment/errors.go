package appointment

import (
	"errors"
	"strings"
)

var (
	ErrInvalidTime    = errors.New("invalid appointment time")
	ErrPastTime       = errors.New("appointment time is in the past")
	ErrBeforeMinimum  = errors.New("appointment time is before the first bookable date")
	ErrMissingFields  = errors.New("missing mandatory patient fields")
	ErrExcludedPlan   = errors.New("insurance plan is not accepted")
	ErrOutsideWindow  = errors.New("appointment time is outside the clinic schedule")
	ErrSlotTaken      = errors.New("slot is already booked")
	ErrBackend        = errors.New("calendar backend error")
	ErrNotFound       = errors.New("appointment not found")
	ErrPriorityActive = errors.New("conversation is escalated to clinical priority")
)

// MissingFieldsError lists the profile keys that were blank.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return ErrMissingFields.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

const (
	KindOK       = "ok"
	KindInternal = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrPriorityActive, "priority_active"},
	{ErrInvalidTime, "invalid_time"},
	{ErrPastTime, "past_time"},
	{ErrBeforeMinimum, "before_minimum"},
	{ErrMissingFields, "missing_fields"},
	{ErrExcludedPlan, "excluded_plan"},
	{ErrOutsideWindow, "outside_window"},
	{ErrSlotTaken, "slot_taken"},
	{ErrNotFound, "not_found"},
	{ErrBackend, "backend_error"},
}

// Kind maps err to the snake_case outcome used in API responses, metrics and
// the audit log. nil is "ok"; anything unclassified is "internal".
func Kind(err error) string {
	if err == nil {
		return KindOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
