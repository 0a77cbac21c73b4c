package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/toolcall"
	"github.com/tbxark/intakeagent/types"
)

const DefaultMaxToolHops = 3

// DefaultTransitionTemplate announces a step change, formatted with the finished step and the new one.
const DefaultTransitionTemplate = `The "%s" step is complete. Let's move on to the next step: "%s".`

type controllerOptions struct {
	maxHops            int
	transitionRole     schema.RoleType
	transitionTemplate string
}

type Option func(*controllerOptions)

// WithMaxToolHops bounds how many times a turn re-invokes the model after applying tool calls.
func WithMaxToolHops(n int) Option {
	return func(o *controllerOptions) {
		o.maxHops = n
	}
}

// WithTransitionRole selects the role of the step transition announcement: schema.User
// (visible, the default) or schema.System (hidden note).
func WithTransitionRole(role schema.RoleType) Option {
	return func(o *controllerOptions) {
		o.transitionRole = role
	}
}

func WithTransitionTemplate(tpl string) Option {
	return func(o *controllerOptions) {
		o.transitionTemplate = tpl
	}
}

// Controller runs step gated tool calling turns against a Streamer.
type Controller struct {
	steps              *step.Schema
	streamer           chat.Streamer
	maxHops            int
	transitionRole     schema.RoleType
	transitionTemplate string
}

func NewController(steps *step.Schema, streamer chat.Streamer, opts ...Option) (*Controller, error) {
	if steps == nil {
		return nil, fmt.Errorf("step schema is required")
	}
	if streamer == nil {
		return nil, fmt.Errorf("streamer is required")
	}
	options := controllerOptions{
		maxHops:            DefaultMaxToolHops,
		transitionRole:     schema.User,
		transitionTemplate: DefaultTransitionTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.maxHops < 0 {
		options.maxHops = 0
	}
	switch options.transitionRole {
	case schema.User, schema.System:
	default:
		return nil, fmt.Errorf("unsupported transition role %q", options.transitionRole)
	}
	return &Controller{
		steps:              steps,
		streamer:           streamer,
		maxHops:            options.maxHops,
		transitionRole:     options.transitionRole,
		transitionTemplate: options.transitionTemplate,
	}, nil
}

func (c *Controller) Schema() *step.Schema {
	return c.steps
}

// Send appends the user message and runs the turn to completion.
func (c *Controller) Send(ctx context.Context, conv Conversation, text string, sink Sink) (Conversation, error) {
	conv = conv.clone()
	conv.History = append(conv.History, schema.UserMessage(text))
	return c.run(ctx, conv, sink)
}

// Advance moves to the next step, announces it and lets the model open the new step.
// At the last step it does nothing.
func (c *Controller) Advance(ctx context.Context, conv Conversation, sink Sink) (Conversation, error) {
	conv = conv.clone()
	next, err := c.steps.Advance(conv.Cursor)
	if err != nil {
		slog.Debug("Advance ignored", "step", c.steps.Name(conv.Cursor), "error", err)
		return conv, nil
	}
	conv.History = append(conv.History, c.transitionMessage(conv.Cursor, next))
	conv.Cursor = next
	sink.emit(Event{Kind: EventStepChanged, Step: c.steps.Name(next), Cursor: next})
	return c.run(ctx, conv, sink)
}

// Retreat moves to the previous step without touching the history.
func (c *Controller) Retreat(conv Conversation, sink Sink) Conversation {
	conv = conv.clone()
	prev, err := c.steps.Retreat(conv.Cursor)
	if err != nil {
		slog.Debug("Retreat ignored", "step", c.steps.Name(conv.Cursor), "error", err)
		return conv
	}
	conv.Cursor = prev
	sink.emit(Event{Kind: EventStepChanged, Step: c.steps.Name(prev), Cursor: prev})
	return conv
}

func (c *Controller) run(ctx context.Context, conv Conversation, sink Sink) (Conversation, error) {
	defer sink.emit(Event{Kind: EventPhase, Phase: types.PhaseIdle, Cursor: conv.Cursor})

	for hop := 0; ; hop++ {
		calls, err := c.streamTurn(ctx, &conv, sink)
		if err != nil {
			return conv, err
		}
		if len(calls) == 0 {
			return conv, nil
		}

		sink.emit(Event{Kind: EventPhase, Phase: types.PhaseApplyingTools, Cursor: conv.Cursor})
		c.applyTools(&conv, calls, sink)

		if hop >= c.maxHops {
			slog.Warn("Tool hop limit reached", "hops", hop, "step", c.steps.Name(conv.Cursor))
			return conv, nil
		}
		sink.emit(Event{Kind: EventPhase, Phase: types.PhaseAwaitingConfirmation, Cursor: conv.Cursor})
	}
}

// streamTurn consumes one completion. The assistant message is in the history from the
// moment the stream opens and receives its tool calls before any tool result is appended.
func (c *Controller) streamTurn(ctx context.Context, conv *Conversation, sink Sink) ([]schema.ToolCall, error) {
	sink.emit(Event{Kind: EventPhase, Phase: types.PhaseStreaming, Cursor: conv.Cursor})

	stepName := c.steps.Name(conv.Cursor)
	stream, err := c.streamer.Stream(ctx, &chat.Request{
		StepName: stepName,
		Form:     conv.Form.Clone(),
		History:  conv.History,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	assistant := &schema.Message{Role: schema.Assistant}
	conv.History = append(conv.History, assistant)

	assembler := toolcall.NewAssembler()
	var content strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("Stream interrupted", "step", stepName, "error", err)
			return nil, err
		}
		switch delta.Kind {
		case chat.DeltaContent:
			content.WriteString(delta.Text)
			assistant.Content = content.String()
			sink.emit(Event{Kind: EventContent, Text: delta.Text, Cursor: conv.Cursor})
		case chat.DeltaToolCall:
			if err := assembler.Add(*delta.ToolCall); err != nil {
				return nil, &types.ProviderError{StatusCode: http.StatusBadGateway, Message: err.Error(), Err: err}
			}
		case chat.DeltaDone:
			calls := assembler.Finish()
			assistant.ToolCalls = calls
			slog.Debug("Turn finished", "step", stepName, "tool_calls", len(calls), "finish_reason", delta.FinishReason)
			return calls, nil
		}
	}
	calls := assembler.Finish()
	assistant.ToolCalls = calls
	return calls, nil
}

func (c *Controller) transitionMessage(from, to step.Cursor) *schema.Message {
	text := fmt.Sprintf(c.transitionTemplate, c.steps.Name(from), c.steps.Name(to))
	if c.transitionRole == schema.System {
		return schema.SystemMessage(text)
	}
	return schema.UserMessage(text)
}
