package dialogue

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

const failedToExecute = "Failed to execute"

type toolSuccess struct {
	Success bool `json:"success"`
	Updated any  `json:"updated"`
	Noop    bool `json:"noop,omitempty"`
}

type toolFailure struct {
	Error string `json:"error"`
}

type transition struct {
	from, to step.Cursor
}

// applyTools appends one tool message per call, in call order, then the transition
// announcements for every step completed by the batch.
func (c *Controller) applyTools(conv *Conversation, calls []schema.ToolCall, sink Sink) {
	var transitions []transition
	for i := range calls {
		call := calls[i]
		sink.emit(Event{Kind: EventToolCall, ToolCall: &call, Cursor: conv.Cursor})

		var payload any
		args, err := parseArguments(call.Function.Arguments)
		if err != nil {
			slog.Warn("Tool arguments rejected", "tool", call.Function.Name, "id", call.ID, "error", err)
			payload = toolFailure{Error: failedToExecute}
		} else {
			switch call.Function.Name {
			case chat.UpdateTaskInfoTool:
				payload = c.applyUpdate(conv, args, sink)
			case chat.CompleteStepTool:
				if t, ok := c.applyComplete(conv, sink); ok {
					transitions = append(transitions, t)
				}
				payload = toolSuccess{Success: true, Updated: map[string]any{}}
			default:
				slog.Warn("Ignoring tool call", "id", call.ID, "error", fmt.Errorf("%w: %s", types.ErrUnknownTool, call.Function.Name))
				payload = toolSuccess{Success: true, Updated: map[string]any{}, Noop: true}
			}
		}

		result, err := sonic.MarshalString(payload)
		if err != nil {
			result = `{"error":"` + failedToExecute + `"}`
		}
		conv.History = append(conv.History, &schema.Message{
			Role:       schema.Tool,
			Content:    result,
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
		})
		sink.emit(Event{Kind: EventToolResult, ToolCall: &call, Result: result, Cursor: conv.Cursor})
	}

	for _, t := range transitions {
		conv.History = append(conv.History, c.transitionMessage(t.from, t.to))
	}
}

func (c *Controller) applyUpdate(conv *Conversation, args map[string]any, sink Sink) any {
	next, applied, err := patch.Merge(conv.Form, args, c.steps.HasField)
	if err != nil {
		slog.Warn("Form merge failed", "error", err)
		return toolFailure{Error: failedToExecute}
	}
	changed, err := patch.Changed(conv.Form, next)
	if err != nil {
		slog.Warn("Form diff failed", "error", err)
	}
	conv.Form = next
	slog.Info("Form updated", "step", c.steps.Name(conv.Cursor), "fields", len(applied), "changed", changed)
	if len(changed) > 0 {
		sink.emit(Event{Kind: EventFormUpdated, Form: next.Clone(), Cursor: conv.Cursor})
	}
	return toolSuccess{Success: true, Updated: args}
}

func (c *Controller) applyComplete(conv *Conversation, sink Sink) (transition, bool) {
	from := conv.Cursor
	if missing := c.steps.MissingFields(c.steps.Name(from), conv.Form); len(missing) > 0 {
		slog.Warn("Step completed with missing fields", "step", c.steps.Name(from), "missing", missing)
	}
	to, err := c.steps.Advance(from)
	if err != nil {
		slog.Debug("completeStep ignored", "step", c.steps.Name(from), "error", err)
		return transition{}, false
	}
	conv.Cursor = to
	slog.Info("Step completed", "from", c.steps.Name(from), "to", c.steps.Name(to))
	sink.emit(Event{Kind: EventStepChanged, Step: c.steps.Name(to), Cursor: to})
	return transition{from: from, to: to}, true
}

// parseArguments decodes a tool call argument object. Blank text and null count as {}.
func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := sonic.UnmarshalString(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrToolArgumentParse, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
