package assistant

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

// DefaultModel is used when OPENAI_MODEL is unset.
const DefaultModel = "gpt-4o-mini"

// Interpreter turns the conversation so far into the assistant's next
// message: free text, action blocks, or both.
type Interpreter interface {
	Interpret(ctx context.Context, history []session.Message) (string, error)
}

// OpenAIInterpreter calls the chat completions API with a fixed system prompt
// in front of the session history.
type OpenAIInterpreter struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

func NewOpenAIInterpreter(apiKey, model, systemPrompt string) *OpenAIInterpreter {
	if model == "" {
		model = DefaultModel
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &OpenAIInterpreter{
		client:       openai.NewClient(apiKey),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

// NewOpenAIInterpreterWithConfig lets callers point the client at another
// base URL, e.g. a proxy or a test server.
func NewOpenAIInterpreterWithConfig(cfg openai.ClientConfig, model, systemPrompt string) *OpenAIInterpreter {
	in := NewOpenAIInterpreter("", model, systemPrompt)
	in.client = openai.NewClientWithConfig(cfg)
	return in
}

func (o *OpenAIInterpreter) Interpret(ctx context.Context, history []session.Message) (string, error) {
	if o.client == nil {
		return "", errors.New("openai client not initialized")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt})
	for _, m := range history {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// DefaultSystemPrompt describes the action protocol. Clinic-specific tone and
// triage rules are expected to be supplied through configuration.
const DefaultSystemPrompt = `Eres el asistente de agendamiento del consultorio. Responde en español, breve y cordial.

Cuando necesites datos de la agenda emite un bloque:
` + "```action" + `
{"action":"...","data":{...}}
` + "```" + `

Acciones disponibles:
- consultar_disponibilidad: {"tipo","fecha":"YYYY-MM-DD"}
- consultar_disponibilidad_rango: {"tipo","desde":"YYYY-MM-DD","dias"}
- disponibilidad_cercana: {"tipo","desde":"YYYY-MM-DD"}
- crear_cita: {"tipo","inicio","fin","nombre","cedula","entidad_salud","plan","correo","celular","direccion","ciudad"}
- cancelar_cita: {"fecha":"YYYY-MM-DD","hora":"HH:MM","cedula"}
- escalar_prioridad: {}

Tipos: "Primera vez", "Control presencial", "Control virtual", "Biopsia guiada por ecografía".
Nunca confirmes una cita antes de recibir la respuesta del sistema. No inventes horarios.
Si la respuesta de consultar_disponibilidad trae "requested_date", la fecha pedida no se puede agendar y los horarios son de "date"; díselo al paciente.
Los bloques de acción contienen únicamente JSON.`
