package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeKeepsKnownValues(t *testing.T) {
	old := Profile{Name: "Ana Pérez", City: "Barranquilla", Insurer: "Colsanitas"}
	merged := Merge(old, Profile{Name: "  ", Email: "ana@example.com", City: ""})

	assert.Equal(t, "Ana Pérez", merged.Name)
	assert.Equal(t, "Barranquilla", merged.City)
	assert.Equal(t, "ana@example.com", merged.Email)
	assert.Equal(t, "Colsanitas", merged.Insurer)
}

func TestMergeOverridesWithNewValues(t *testing.T) {
	old := Profile{Phone: "3001112233", BloodType: "O+"}
	merged := Merge(old, Profile{Phone: " 3009998877 ", Insurer: "seguros bolívar"})

	assert.Equal(t, "3009998877", merged.Phone)
	assert.Equal(t, "O+", merged.BloodType)
	assert.Equal(t, "Bolivar", merged.Insurer)
}

func TestMergeIsMonotonic(t *testing.T) {
	p := Profile{}
	updates := []Profile{
		{Name: "Luis"},
		{NationalID: "1045"},
		{Name: ""},
		{MaritalStatus: "soltero"},
	}
	for _, u := range updates {
		p = Merge(p, u)
	}
	assert.Equal(t, Profile{Name: "Luis", NationalID: "1045", MaritalStatus: "soltero"}, p)
}

func TestCanonicalInsurer(t *testing.T) {
	cases := map[string]string{
		"Col Sanitas":            "Colsanitas",
		"COLMÉDICA prepagada":    "Colmedica",
		"Suda americana":         "Sudamericana",
		"sud americana":          "Sudamericana",
		"SUDAMERICANA":           "Sudamericana",
		"Bolívar":                "Bolivar",
		"med plus":               "Medplus",
		"coomeva preferente":     "Coomeva",
		"pago particular":        "Particular",
		"InsurerX-PreferredTier": "InsurerX-PreferredTier",
		"   ":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalInsurer(in), in)
	}
}

func TestProfileFieldsOrder(t *testing.T) {
	fields := Profile{Name: "Ana", City: "Soledad"}.Fields()
	assert.Equal(t, "name", fields[0].Key)
	assert.Equal(t, "Ana", fields[0].Value)
	assert.Equal(t, "marital_status", fields[len(fields)-1].Key)
}

func TestMergeKeepsTierTextAsPlan(t *testing.T) {
	merged := Merge(Profile{}, Profile{Insurer: "Coomeva Preferente"})
	assert.Equal(t, "Coomeva", merged.Insurer)
	assert.Equal(t, "Coomeva Preferente", merged.Plan)

	merged = Merge(Profile{}, Profile{Insurer: "coomeva", Plan: "oro plus"})
	assert.Equal(t, "Coomeva", merged.Insurer)
	assert.Equal(t, "oro plus", merged.Plan)
}
