package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/availability"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

// Action names the interpreter may emit.
const (
	ActionDayAvailability   = "consultar_disponibilidad"
	ActionRangeAvailability = "consultar_disponibilidad_rango"
	ActionNearest           = "disponibilidad_cercana"
	ActionBook              = "crear_cita"
	ActionCancel            = "cancelar_cita"
	ActionEscalate          = "escalar_prioridad"
)

// DefaultRangeDays is used when a range query does not say how many days.
const DefaultRangeDays = 14

const (
	errorUnknownAction = "unknown_action"
	errorBadPayload    = "bad_payload"
)

// Availability is the read side the dispatcher needs.
type Availability interface {
	ResolveOneDay(ctx context.Context, t schedule.AppointmentType, date time.Time) (availability.DayAvailability, error)
	ResolveRange(ctx context.Context, t schedule.AppointmentType, from time.Time, numDays int) ([]availability.DayAvailability, error)
	ResolveNearest(ctx context.Context, t schedule.AppointmentType, from time.Time) (*availability.DayAvailability, error)
}

// Scheduler is the write side the dispatcher needs.
type Scheduler interface {
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Confirmation, error)
	Cancel(ctx context.Context, req appointment.CancelRequest) (*appointment.Cancellation, error)
}

// Result is what the backend reports back to the interpreter for one action.
type Result struct {
	Action  string `json:"action"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type DispatcherOptions struct {
	RangeDays int
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Dispatcher executes interpreter actions against the scheduling core and
// keeps the session's type, offered slot and profile up to date.
type Dispatcher struct {
	availability Availability
	scheduler    Scheduler
	loc          *time.Location
	rangeDays    int
	logger       zerolog.Logger
	now          func() time.Time
}

func NewDispatcher(avail Availability, sched Scheduler, loc *time.Location, opts DispatcherOptions) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if opts.RangeDays <= 0 {
		opts.RangeDays = DefaultRangeDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		availability: avail,
		scheduler:    sched,
		loc:          loc,
		rangeDays:    opts.RangeDays,
		logger:       opts.Logger.With().Str("component", "dispatcher").Logger(),
		now:          opts.Now,
	}
}

type availabilityData struct {
	Type string      `json:"tipo"`
	Date string      `json:"fecha"`
	From string      `json:"desde"`
	Days json.Number `json:"dias"`
}

type cancelData struct {
	Date       string `json:"fecha"`
	Time       string `json:"hora"`
	NationalID string `json:"cedula"`
}

type bookingData struct {
	Type          string `json:"tipo"`
	Start         string `json:"inicio"`
	End           string `json:"fin"`
	Name          string `json:"nombre"`
	NationalID    string `json:"cedula"`
	Insurer       string `json:"entidad_salud"`
	Plan          string `json:"plan"`
	Email         string `json:"correo"`
	Mobile        string `json:"celular"`
	Phone         string `json:"telefono"`
	Address       string `json:"direccion"`
	City          string `json:"ciudad"`
	BirthDate     string `json:"fecha_nacimiento"`
	BloodType     string `json:"tipo_sangre"`
	MaritalStatus string `json:"estado_civil"`
}

func (b bookingData) profile() session.Profile {
	phone := b.Mobile
	if strings.TrimSpace(phone) == "" {
		phone = b.Phone
	}
	return session.Profile{
		Name:          b.Name,
		NationalID:    b.NationalID,
		Insurer:       b.Insurer,
		Plan:          b.Plan,
		Email:         b.Email,
		Phone:         phone,
		Address:       b.Address,
		City:          b.City,
		BirthDate:     b.BirthDate,
		BloodType:     b.BloodType,
		MaritalStatus: b.MaritalStatus,
	}
}

// Dispatch runs actions in order and returns one result per action. A failing
// action never stops the ones after it.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for _, a := range actions {
		res := d.dispatch(ctx, sess, a)
		res.Action = a.Name
		d.logger.Debug().
			Str("conversation_id", sess.ID).
			Str("action", a.Name).
			Bool("ok", res.OK).
			Str("error", res.Error).
			Msg("action dispatched")
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) dispatch(ctx context.Context, sess *session.Session, a Action) Result {
	switch a.Name {
	case ActionDayAvailability:
		return d.dayAvailability(ctx, sess, a.Data)
	case ActionRangeAvailability:
		return d.rangeAvailability(ctx, sess, a.Data)
	case ActionNearest:
		return d.nearest(ctx, sess, a.Data)
	case ActionBook:
		return d.book(ctx, sess, a.Data)
	case ActionCancel:
		return d.cancel(ctx, a.Data)
	case ActionEscalate:
		sess.Escalated = true
		return Result{OK: true, Message: "Caso marcado como prioritario; un asesor contactará al paciente."}
	default:
		return Result{Error: errorUnknownAction, Message: fmt.Sprintf("Acción desconocida: %q.", a.Name)}
	}
}

// appointmentType prefers the action's type, then the one already chosen in
// the conversation.
func (d *Dispatcher) appointmentType(sess *session.Session, raw string) schedule.AppointmentType {
	t := sess.Type
	if strings.TrimSpace(raw) != "" || t == "" {
		t = schedule.ParseAppointmentType(raw)
	}
	sess.Type = t
	return t
}

// date parses a "2006-01-02" day in the clinic zone; blank means today.
func (d *Dispatcher) date(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return d.now().In(d.loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, d.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", appointment.ErrInvalidTime, raw)
	}
	return day, nil
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

func (d *Dispatcher) dayAvailability(ctx context.Context, sess *session.Session, data json.RawMessage) Result {
	in, err := decode[availabilityData](data)
	if err != nil {
		return badPayload(err)
	}
	t := d.appointmentType(sess, in.Type)
	date, err := d.date(in.Date)
	if err != nil {
		return failure(err)
	}
	day, err := d.availability.ResolveOneDay(ctx, t, date)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", appointment.ErrBackend, err))
	}
	res := Result{OK: true, Data: day}
	var notes []string
	if day.Moved() {
		notes = append(notes, fmt.Sprintf("El %s no se puede agendar para este tipo de cita; se consultó el %s.",
			appointment.FormatDateES(day.RequestedDate), appointment.FormatDateES(day.Date)))
	}
	if len(day.FreeSlots) == 0 {
		notes = append(notes, "Día sin cupos disponibles para este tipo de cita.")
	}
	res.Message = strings.Join(notes, " ")
	return res
}

func (d *Dispatcher) rangeAvailability(ctx context.Context, sess *session.Session, data json.RawMessage) Result {
	in, err := decode[availabilityData](data)
	if err != nil {
		return badPayload(err)
	}
	t := d.appointmentType(sess, in.Type)
	from, err := d.date(in.From)
	if err != nil {
		return failure(err)
	}
	numDays := d.rangeDays
	if n, err := in.Days.Int64(); err == nil && n > 0 {
		numDays = int(n)
	}
	days, err := d.availability.ResolveRange(ctx, t, from, numDays)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", appointment.ErrBackend, err))
	}
	if days == nil {
		days = []availability.DayAvailability{}
	}
	return Result{OK: true, Data: days}
}

// nearest offers exactly one slot and remembers it, so a following
// crear_cita without times books what the patient was shown.
func (d *Dispatcher) nearest(ctx context.Context, sess *session.Session, data json.RawMessage) Result {
	in, err := decode[availabilityData](data)
	if err != nil {
		return badPayload(err)
	}
	t := d.appointmentType(sess, in.Type)
	from, err := d.date(in.From)
	if err != nil {
		return failure(err)
	}
	day, err := d.availability.ResolveNearest(ctx, t, from)
	if err != nil {
		return failure(fmt.Errorf("%w: %w", appointment.ErrBackend, err))
	}
	if day == nil || len(day.FreeSlots) == 0 {
		sess.OfferedSlot = nil
		return Result{OK: true, Message: "No hay cupos disponibles en el horizonte de búsqueda."}
	}
	slot := day.FreeSlots[0]
	sess.OfferedSlot = &slot
	return Result{OK: true, Data: availability.DayAvailability{
		Date:      day.Date,
		Duration:  day.Duration,
		FreeSlots: []schedule.Slot{slot},
	}}
}

func (d *Dispatcher) book(ctx context.Context, sess *session.Session, data json.RawMessage) Result {
	in, err := decode[bookingData](data)
	if err != nil {
		return badPayload(err)
	}
	t := d.appointmentType(sess, in.Type)
	sess.Profile = session.Merge(sess.Profile, in.profile())

	start, end := strings.TrimSpace(in.Start), strings.TrimSpace(in.End)
	if offered := sess.OfferedSlot; offered != nil {
		offeredStart := offered.Start.In(d.loc).Format(time.RFC3339)
		if start == "" {
			start = offeredStart
		}
		if end == "" && start == offeredStart {
			end = offered.End.In(d.loc).Format(time.RFC3339)
		}
	}

	conf, err := d.scheduler.Book(ctx, appointment.BookingRequest{
		ConversationID: sess.ID,
		Type:           t,
		Start:          start,
		End:            end,
		Patient:        sess.Profile,
		Escalated:      sess.Escalated,
	})
	if err != nil {
		return failure(err)
	}
	sess.OfferedSlot = nil
	return Result{OK: true, Message: conf.Text, Data: conf}
}

func (d *Dispatcher) cancel(ctx context.Context, data json.RawMessage) Result {
	in, err := decode[cancelData](data)
	if err != nil {
		return badPayload(err)
	}
	out, err := d.scheduler.Cancel(ctx, appointment.CancelRequest{
		Date:       in.Date,
		Time:       in.Time,
		NationalID: in.NationalID,
	})
	if err != nil {
		return failure(err)
	}
	return Result{
		OK:      true,
		Message: fmt.Sprintf("Cita del %s cancelada.", appointment.FormatDateES(out.Start)),
		Data:    out,
	}
}

func badPayload(err error) Result {
	return Result{Error: errorBadPayload, Message: "No pude leer los datos de la acción: " + err.Error()}
}

// failure turns a core error into the kind plus a message the interpreter can
// relay to the patient.
func failure(err error) Result {
	kind := appointment.Kind(err)
	res := Result{Error: kind, Message: patientMessage(kind)}
	var missing *appointment.MissingFieldsError
	if errors.As(err, &missing) {
		res.Message = "Antes de agendar necesito: " + strings.Join(missingLabels(missing.Fields), ", ") + "."
	}
	return res
}

var kindMessages = map[string]string{
	"priority_active": "Tu caso es prioritario y un asesor te contactará directamente. No puedo crear la cita por este medio.",
	"invalid_time":    "Fecha u hora inválida.",
	"past_time":       "La hora elegida ya pasó. Elige una fecha futura.",
	"before_minimum":  "Aún no hay agenda abierta para esa fecha. Elige una fecha posterior.",
	"excluded_plan":   "Lo sentimos, ese plan no tiene convenio con el consultorio.",
	"outside_window":  "Ese horario está fuera de la agenda del consultorio.",
	"slot_taken":      "Ese horario acaba de ser tomado. Te propongo otro.",
	"not_found":       "No encontré una cita en esa fecha y hora.",
	"backend_error":   "No pude comunicarme con la agenda. Intenta de nuevo en unos minutos.",
}

func patientMessage(kind string) string {
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return "Ocurrió un error inesperado."
}

var fieldLabels = map[string]string{
	"name":           "nombre completo",
	"national_id":    "cédula",
	"insurer":        "entidad de salud (o particular)",
	"email":          "correo",
	"phone":          "número de celular",
	"address":        "dirección",
	"city":           "ciudad",
	"birth_date":     "fecha de nacimiento",
	"blood_type":     "tipo de sangre",
	"marital_status": "estado civil",
}

func missingLabels(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if label, ok := fieldLabels[f]; ok {
			out = append(out, label)
			continue
		}
		out = append(out, f)
	}
	return out
}
