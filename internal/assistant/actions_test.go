package assistant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractActionsFencedBlock(t *testing.T) {
	text := "Claro, reviso la agenda.\n```action\n{\"action\":\"consultar_disponibilidad\",\"data\":{\"tipo\":\"Control presencial\",\"fecha\":\"2025-11-17\"}}\n```"

	actions := ExtractActions(text)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionDayAvailability, actions[0].Name)

	var data availabilityData
	require.NoError(t, json.Unmarshal(actions[0].Data, &data))
	assert.Equal(t, "2025-11-17", data.Date)
}

func TestExtractActionsRepairsSloppyJSON(t *testing.T) {
	text := "```json\n{“action”: “crear_cita”, “data”: {“nombre”: 'Ana Pérez', “ciudad”: “Barranquilla”,},}\n```"

	actions := ExtractActions(text)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionBook, actions[0].Name)

	var data bookingData
	require.NoError(t, json.Unmarshal(actions[0].Data, &data))
	assert.Equal(t, "Ana Pérez", data.Name)
	assert.Equal(t, "Barranquilla", data.City)
}

func TestExtractActionsMultipleAndNested(t *testing.T) {
	text := `{"action":"disponibilidad_cercana","data":{"tipo":"virtual"}} y luego {"action":"Cancelar_Cita","data":{"fecha":"2025-11-17","hora":"8:00"}}`

	actions := ExtractActions(text)
	require.Len(t, actions, 2)
	assert.Equal(t, ActionNearest, actions[0].Name)
	assert.Equal(t, ActionCancel, actions[1].Name)
}

func TestExtractActionsIgnoresPlainObjects(t *testing.T) {
	assert.Empty(t, ExtractActions(`{"nombre":"Ana"} sin acciones`))
	assert.Empty(t, ExtractActions("Hola, ¿en qué te ayudo?"))
	assert.Empty(t, ExtractActions(`{"action": "crear_cita", "data": {`))
}

func TestExtractActionsBracesInStrings(t *testing.T) {
	actions := ExtractActions(`{"action":"crear_cita","data":{"direccion":"Calle 5 {interior}"}}`)
	require.Len(t, actions, 1)

	var data bookingData
	require.NoError(t, json.Unmarshal(actions[0].Data, &data))
	assert.Equal(t, "Calle 5 {interior}", data.Address)
}

func TestStripActions(t *testing.T) {
	text := "Te busco el cupo más cercano.\n```action\n{\"action\":\"disponibilidad_cercana\",\"data\":{}}\n```"
	assert.Equal(t, "Te busco el cupo más cercano.", StripActions(text))

	assert.Equal(t, `Tu dato {"nombre":"Ana"} quedó`, StripActions(`Tu dato {"nombre":"Ana"} quedó`))
}
