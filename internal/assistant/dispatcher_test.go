package assistant

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/availability"
	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

var cot = time.FixedZone("COT", -5*3600)

func at(d, hh, mm int) time.Time {
	return time.Date(2025, time.November, d, hh, mm, 0, 0, cot)
}

// Sunday morning; the next open day is Monday the 17th.
var sunday = at(16, 10, 0)

type harness struct {
	dispatcher *Dispatcher
	gw         *calendar.MemoryGateway
}

func newHarness(t *testing.T) harness {
	t.Helper()
	now := func() time.Time { return sunday }
	policy := schedule.DefaultPolicy(cot)
	gw := calendar.NewMemoryGateway("clinic", cot)

	resolver := availability.NewResolver(policy, gw, availability.Options{Logger: zerolog.Nop(), Now: now})
	svc := appointment.NewService(policy, gw, redisclient.NewLocalLocker(), appointment.Options{
		ExcludedPlans: appointment.ParseExcludedPlans("coomeva:preferent"),
		Logger:        zerolog.Nop(),
		Now:           now,
	})
	return harness{
		dispatcher: NewDispatcher(resolver, svc, cot, DispatcherOptions{Logger: zerolog.Nop(), Now: now}),
		gw:         gw,
	}
}

func action(t *testing.T, name string, data any) Action {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Action{Name: name, Data: raw}
}

func fullPatient() map[string]string {
	return map[string]string{
		"nombre":        "Ana Pérez",
		"cedula":        "1045123456",
		"entidad_salud": "Particular",
		"correo":        "ana@example.com",
		"celular":       "+573001112233",
		"direccion":     "Calle 84 # 45-10",
		"ciudad":        "Barranquilla",
	}
}

func TestDispatchNearestThenBookUsesOfferedSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess := &session.Session{ID: "wa-1"}

	res := h.dispatcher.Dispatch(ctx, sess, []Action{
		action(t, ActionNearest, map[string]string{"tipo": "Control presencial"}),
	})
	require.Len(t, res, 1)
	require.True(t, res[0].OK, res[0].Message)
	require.NotNil(t, sess.OfferedSlot)
	assert.Equal(t, at(17, 8, 0), sess.OfferedSlot.Start)
	assert.Equal(t, schedule.InPersonFollowUp, sess.Type)

	day, ok := res[0].Data.(availability.DayAvailability)
	require.True(t, ok)
	assert.Len(t, day.FreeSlots, 1)

	res = h.dispatcher.Dispatch(ctx, sess, []Action{action(t, ActionBook, fullPatient())})
	require.Len(t, res, 1)
	require.True(t, res[0].OK, res[0].Message)
	assert.Equal(t, ActionBook, res[0].Action)

	conf, ok := res[0].Data.(*appointment.Confirmation)
	require.True(t, ok)
	assert.True(t, conf.Start.Equal(at(17, 8, 0)))
	assert.True(t, conf.End.Equal(at(17, 8, 15)))
	assert.Equal(t, 1, h.gw.Inserts())
	assert.Nil(t, sess.OfferedSlot)
	assert.Equal(t, "Ana Pérez", sess.Profile.Name)
	assert.Equal(t, "Particular", sess.Profile.Insurer)
}

func TestDispatchBookMissingFieldsListsLabels(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "wa-2"}

	res := h.dispatcher.Dispatch(context.Background(), sess, []Action{
		action(t, ActionBook, map[string]string{
			"tipo":   "Control presencial",
			"inicio": "2025-11-17T08:00",
			"nombre": "Ana Pérez",
		}),
	})
	require.Len(t, res, 1)
	assert.False(t, res[0].OK)
	assert.Equal(t, "missing_fields", res[0].Error)
	assert.Contains(t, res[0].Message, "cédula")
	assert.Contains(t, res[0].Message, "ciudad")
	assert.Equal(t, "Ana Pérez", sess.Profile.Name, "partial data is kept for the next attempt")
	assert.Zero(t, h.gw.Inserts())
}

func TestDispatchEscalationBlocksBooking(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "wa-3"}

	data := fullPatient()
	data["inicio"] = "2025-11-17T08:00"
	res := h.dispatcher.Dispatch(context.Background(), sess, []Action{
		{Name: ActionEscalate},
		action(t, ActionBook, data),
	})
	require.Len(t, res, 2)
	assert.True(t, res[0].OK)
	assert.True(t, sess.Escalated)
	assert.Equal(t, "priority_active", res[1].Error)
	assert.Zero(t, h.gw.Inserts())
}

func TestDispatchDayAvailabilityClosedDay(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "wa-4"}

	res := h.dispatcher.Dispatch(context.Background(), sess, []Action{
		action(t, ActionDayAvailability, map[string]string{"tipo": "Primera vez", "fecha": "2025-11-18"}),
	})
	require.Len(t, res, 1)
	assert.True(t, res[0].OK)
	assert.NotEmpty(t, res[0].Message)
	day := res[0].Data.(availability.DayAvailability)
	assert.Empty(t, day.FreeSlots)
	assert.Equal(t, schedule.FirstVisit, sess.Type)
}

func TestDispatchDayAvailabilityPastDateSaysWhichDay(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "wa-9"}

	res := h.dispatcher.Dispatch(context.Background(), sess, []Action{
		action(t, ActionDayAvailability, map[string]string{"tipo": "Control presencial", "fecha": "2025-11-10"}),
	})
	require.Len(t, res, 1)
	require.True(t, res[0].OK, res[0].Message)
	day := res[0].Data.(availability.DayAvailability)
	assert.True(t, day.Moved())
	assert.Equal(t, at(10, 0, 0), day.RequestedDate)
	assert.Equal(t, at(16, 0, 0), day.Date)
	assert.Contains(t, res[0].Message, "lunes 10 de noviembre")
	assert.Contains(t, res[0].Message, "domingo 16 de noviembre")
}

func TestDispatchRangeAvailability(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "wa-5", Type: schedule.VirtualFollowUp}

	res := h.dispatcher.Dispatch(context.Background(), sess, []Action{
		action(t, ActionRangeAvailability, map[string]any{"desde": "2025-11-17", "dias": "7"}),
	})
	require.Len(t, res, 1)
	require.True(t, res[0].OK, res[0].Message)

	days := res[0].Data.([]availability.DayAvailability)
	require.Len(t, days, 1)
	assert.Equal(t, time.Friday, days[0].Date.Weekday())
	assert.Equal(t, schedule.VirtualFollowUp, sess.Type, "type carries over when the action omits it")
}

func TestDispatchInvalidDate(t *testing.T) {
	h := newHarness(t)
	res := h.dispatcher.Dispatch(context.Background(), &session.Session{}, []Action{
		action(t, ActionDayAvailability, map[string]string{"fecha": "mañana"}),
	})
	require.Len(t, res, 1)
	assert.Equal(t, "invalid_time", res[0].Error)
}

func TestDispatchCancel(t *testing.T) {
	h := newHarness(t)
	ev := h.gw.Add(calendar.Event{Summary: "[Control presencial] Ana", Start: at(17, 9, 0), End: at(17, 9, 15)})

	res := h.dispatcher.Dispatch(context.Background(), &session.Session{}, []Action{
		action(t, ActionCancel, map[string]string{"fecha": "2025-11-17", "hora": "9:05"}),
		action(t, ActionCancel, map[string]string{"fecha": "2025-11-17", "hora": "9:05"}),
	})
	require.Len(t, res, 2)
	require.True(t, res[0].OK, res[0].Message)
	assert.Equal(t, ev.ID, res[0].Data.(*appointment.Cancellation).EventID)
	assert.Equal(t, "not_found", res[1].Error)
}

func TestDispatchUnknownActionAndBadPayload(t *testing.T) {
	h := newHarness(t)
	res := h.dispatcher.Dispatch(context.Background(), &session.Session{}, []Action{
		{Name: "enviar_pdf"},
		{Name: ActionNearest, Data: json.RawMessage(`["no","es","objeto"]`)},
	})
	require.Len(t, res, 2)
	assert.Equal(t, errorUnknownAction, res[0].Error)
	assert.Equal(t, errorBadPayload, res[1].Error)
}
