package appointment

import (
	"strings"

	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

// ExcludedPlan names an insurer tier the clinic does not take. An empty Tier
// excludes every plan of the carrier.
type ExcludedPlan struct {
	Carrier string
	Tier    string
}

// ParseExcludedPlans reads "carrier:tier,carrier2" as used by EXCLUDED_PLANS.
func ParseExcludedPlans(raw string) []ExcludedPlan {
	var plans []ExcludedPlan
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		carrier, tier, _ := strings.Cut(item, ":")
		plans = append(plans, ExcludedPlan{
			Carrier: schedule.Fold(carrier),
			Tier:    schedule.Fold(tier),
		})
	}
	return plans
}

// Matches checks the carrier against the insurer and the tier against insurer
// and plan together, both case and accent insensitive.
func (p ExcludedPlan) Matches(profile session.Profile) bool {
	if p.Carrier == "" {
		return false
	}
	insurer := schedule.Fold(profile.Insurer)
	if !strings.Contains(insurer, p.Carrier) {
		return false
	}
	if p.Tier == "" {
		return true
	}
	return strings.Contains(insurer+" "+schedule.Fold(profile.Plan), p.Tier)
}

var (
	baseRequired       = []string{"name", "national_id", "insurer", "email", "phone", "address", "city"}
	firstVisitRequired = []string{"birth_date", "blood_type", "marital_status"}
)

// RequiredFields returns the profile keys that must be present for t.
func RequiredFields(t schedule.AppointmentType) []string {
	if t == schedule.FirstVisit {
		return append(append([]string(nil), baseRequired...), firstVisitRequired...)
	}
	return baseRequired
}

func missingFields(t schedule.AppointmentType, p session.Profile) []string {
	values := make(map[string]string)
	for _, f := range p.Fields() {
		values[f.Key] = f.Value
	}
	var missing []string
	for _, key := range RequiredFields(t) {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
