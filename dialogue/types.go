package dialogue

import (
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// Conversation is the whole state of one intake session. Controller operations take it
// by value and return the updated copy.
type Conversation struct {
	History []*schema.Message `json:"history"`
	Form    types.FormState   `json:"form"`
	Cursor  step.Cursor       `json:"cursor"`
}

func (c Conversation) clone() Conversation {
	history := make([]*schema.Message, len(c.History), len(c.History)+4)
	copy(history, c.History)
	return Conversation{
		History: history,
		Form:    c.Form.Clone(),
		Cursor:  c.Cursor,
	}
}

type EventKind string

const (
	EventPhase       EventKind = "phase"
	EventContent     EventKind = "content"
	EventToolCall    EventKind = "tool_call"
	EventToolResult  EventKind = "tool_result"
	EventFormUpdated EventKind = "form_updated"
	EventStepChanged EventKind = "step_changed"
)

// Event reports progress of a running turn. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind        `json:"kind"`
	Phase    types.Phase      `json:"phase,omitempty"`
	Text     string           `json:"text,omitempty"`
	ToolCall *schema.ToolCall `json:"tool_call,omitempty"`
	Result   string           `json:"result,omitempty"`
	Form     types.FormState  `json:"form,omitempty"`
	Step     string           `json:"step,omitempty"`
	Cursor   step.Cursor      `json:"cursor"`
}

// Sink receives events synchronously on the goroutine running the turn.
type Sink func(Event)

func (s Sink) emit(e Event) {
	if s != nil {
		s(e)
	}
}
