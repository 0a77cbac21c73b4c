package agent

import (
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// Snapshot is the client view of a session after an operation. Message is the reply to
// the operation: the last assistant text or a local notice.
type Snapshot struct {
	ID        string            `json:"id"`
	Phase     types.Phase       `json:"phase"`
	Step      string            `json:"step"`
	Cursor    step.Cursor       `json:"cursor"`
	Steps     []string          `json:"steps"`
	IsReview  bool              `json:"is_review"`
	Form      types.FormState   `json:"form"`
	Missing   []string          `json:"missing"`
	Submitted bool              `json:"submitted"`
	History   []*schema.Message `json:"history,omitempty"`
	Message   string            `json:"message,omitempty"`
}
