package session

import (
	"strings"

	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
)

// Profile is everything the assistant has learned about the patient so far.
// JSON keys double as the field names reported by missing-field errors.
type Profile struct {
	Name          string `json:"name,omitempty"`
	NationalID    string `json:"national_id,omitempty"`
	Insurer       string `json:"insurer,omitempty"`
	Plan          string `json:"plan,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	BirthDate     string `json:"birth_date,omitempty"`
	BloodType     string `json:"blood_type,omitempty"`
	MaritalStatus string `json:"marital_status,omitempty"`
}

// Merge folds update into old. Non-blank update fields win; blank ones never
// erase what is already known. Insurer text is canonicalised on the way in;
// when that drops words ("coomeva preferente") and no plan was given, the raw
// text becomes the plan so tier checks still see it.
func Merge(old, update Profile) Profile {
	out := old
	pick(&out.Name, update.Name)
	pick(&out.NationalID, update.NationalID)

	canon := CanonicalInsurer(update.Insurer)
	plan := update.Plan
	if strings.TrimSpace(plan) == "" && !strings.EqualFold(canon, strings.TrimSpace(update.Insurer)) {
		plan = update.Insurer
	}
	pick(&out.Insurer, canon)
	pick(&out.Plan, plan)
	pick(&out.Email, update.Email)
	pick(&out.Phone, update.Phone)
	pick(&out.Address, update.Address)
	pick(&out.City, update.City)
	pick(&out.BirthDate, update.BirthDate)
	pick(&out.BloodType, update.BloodType)
	pick(&out.MaritalStatus, update.MaritalStatus)
	return out
}

func pick(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Fields returns the profile as key/value pairs in a stable order.
func (p Profile) Fields() []Field {
	return []Field{
		{"name", p.Name},
		{"national_id", p.NationalID},
		{"insurer", p.Insurer},
		{"plan", p.Plan},
		{"email", p.Email},
		{"phone", p.Phone},
		{"address", p.Address},
		{"city", p.City},
		{"birth_date", p.BirthDate},
		{"blood_type", p.BloodType},
		{"marital_status", p.MaritalStatus},
	}
}

type Field struct {
	Key   string
	Value string
}

// knownInsurers lists carriers in match order. Needles are folded and
// space-free; several spellings may map to one carrier.
var knownInsurers = []struct {
	needles []string
	name    string
}{
	{[]string{"sudamericana", "sudaamericana"}, "Sudamericana"},
	{[]string{"colsanitas"}, "Colsanitas"},
	{[]string{"medplus"}, "Medplus"},
	{[]string{"bolivar"}, "Bolivar"},
	{[]string{"allianz"}, "Allianz"},
	{[]string{"colmedica"}, "Colmedica"},
	{[]string{"coomeva"}, "Coomeva"},
	{[]string{"particular"}, "Particular"},
}

// CanonicalInsurer maps free text to a known carrier name, ignoring case,
// accents and spacing. Unknown carriers come back trimmed but otherwise as typed.
func CanonicalInsurer(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	compact := strings.ReplaceAll(schedule.Fold(raw), " ", "")
	for _, k := range knownInsurers {
		for _, needle := range k.needles {
			if strings.Contains(compact, needle) {
				return k.name
			}
		}
	}
	return raw
}
