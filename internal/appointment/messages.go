package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

var (
	weekdaysES = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthsES   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// FormatDateES renders t as "lunes 17 de noviembre".
func FormatDateES(t time.Time) string {
	return fmt.Sprintf("%s %d de %s", weekdaysES[t.Weekday()], t.Day(), monthsES[t.Month()-1])
}

var defaultReminders = []string{
	"Llega con 15 minutos de anticipación.",
	"Lleva impresos todos los reportes y estudios previos.",
	"Está prohibido grabar audio o video durante la consulta sin autorización.",
}

func eventSummary(t schedule.AppointmentType, p session.Profile) string {
	return strings.TrimSpace(fmt.Sprintf("[%s] %s (%s)", t.Label(), strings.TrimSpace(p.Name), p.Insurer))
}

func eventDescription(t schedule.AppointmentType, p session.Profile, conversationID string) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}
	optional := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			line(label, value)
		}
	}

	line("Cédula", p.NationalID)
	line("Entidad", p.Insurer)
	optional("Plan", p.Plan)
	line("Teléfono", p.Phone)
	line("Correo", p.Email)
	line("Tipo", t.Label())
	optional("Fecha de nacimiento", p.BirthDate)
	optional("Tipo de sangre", p.BloodType)
	optional("Estado civil", p.MaritalStatus)
	line("Dirección", p.Address)
	line("Ciudad", p.City)
	optional("Conversación", conversationID)
	return strings.TrimRight(b.String(), "\n")
}

func confirmationText(start time.Time, location string) string {
	return fmt.Sprintf("Tu cita ha sido agendada para el %s a las %s en %s. %s",
		FormatDateES(start), start.Format("15:04"), location, strings.Join(defaultReminders, " "))
}
