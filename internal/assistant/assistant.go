package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/clinic-slot-scheduling/internal/observability"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

var tracer = otel.Tracer("clinic.internal.assistant")

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"

	fallbackReply = "Estoy revisando la agenda, dame un momento."
)

// Reply is the outcome of one inbound patient message.
type Reply struct {
	SessionID string   `json:"session_id"`
	Text      string   `json:"text"`
	Results   []Result `json:"results,omitempty"`
}

type Options struct {
	Logger zerolog.Logger
	Now    func() time.Time
}

// Assistant runs one conversational turn: interpret, execute any actions,
// let the interpreter phrase the outcome, and persist the session.
type Assistant struct {
	store       session.Store
	interpreter Interpreter
	dispatcher  *Dispatcher
	logger      zerolog.Logger
	now         func() time.Time
}

func New(store session.Store, interpreter Interpreter, dispatcher *Dispatcher, opts Options) *Assistant {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assistant{
		store:       store,
		interpreter: interpreter,
		dispatcher:  dispatcher,
		logger:      opts.Logger.With().Str("component", "assistant").Logger(),
		now:         opts.Now,
	}
}

func (a *Assistant) Reply(ctx context.Context, sessionID, text string) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "assistant.reply")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", sessionID))

	sess, err := session.Load(ctx, a.store, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load session")
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Append(roleUser, text)

	out, err := a.interpreter.Interpret(ctx, sess.History)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "interpret")
		return nil, fmt.Errorf("interpret: %w", err)
	}

	reply := &Reply{SessionID: sessionID, Text: StripActions(out)}
	if actions := ExtractActions(out); len(actions) > 0 {
		sess.Append(roleAssistant, out)
		reply.Results = a.dispatcher.Dispatch(ctx, sess, actions)
		reply.Text = a.phrase(ctx, sess, reply.Results)
	}
	if reply.Text == "" {
		reply.Text = fallbackReply
	}
	sess.Append(roleAssistant, reply.Text)
	sess.UpdatedAt = a.now()

	if err := a.store.Save(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save session")
		return nil, fmt.Errorf("save session: %w", err)
	}

	traceLogger := observability.WithTrace(ctx, a.logger)
	traceLogger.Info().
		Str("conversation_id", sessionID).
		Int("actions", len(reply.Results)).
		Msg("assistant replied")
	return reply, nil
}

// phrase feeds the action results back to the interpreter so it can word the
// answer. Actions in this second pass are not executed; if the interpreter
// fails, the result messages are returned verbatim.
func (a *Assistant) phrase(ctx context.Context, sess *session.Session, results []Result) string {
	data, err := json.Marshal(results)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to marshal action results")
		return summarize(results)
	}
	sess.Append(roleSystem, "Resultado del sistema: "+string(data))

	out, err := a.interpreter.Interpret(ctx, sess.History)
	if err != nil {
		a.logger.Warn().Err(err).Str("conversation_id", sess.ID).Msg("interpreter failed after actions")
		return summarize(results)
	}
	if text := StripActions(out); text != "" {
		return text
	}
	return summarize(results)
}

func summarize(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Message != "" {
			parts = append(parts, r.Message)
		}
	}
	return strings.Join(parts, "\n")
}
