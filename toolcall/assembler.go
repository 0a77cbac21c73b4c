package toolcall

import (
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/tbxark/intakeagent/types"
)

// Delta is one streamed fragment of a tool call. Fragments of the same call share Index;
// ID may arrive before, with, or after the name and argument fragments.
type Delta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type pendingCall struct {
	id   string
	name []byte
	args []byte
}

// Assembler buffers the tool call deltas of one streamed turn. It relies on the
// provider never reusing an index for a second call within the turn and reports
// types.ErrToolIndexReused when a new id shows up for an index already carrying arguments.
type Assembler struct {
	pending map[int]*pendingCall
}

func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[int]*pendingCall)}
}

func (a *Assembler) Add(d Delta) error {
	p, ok := a.pending[d.Index]
	if !ok {
		p = &pendingCall{}
		a.pending[d.Index] = p
	}
	if d.ID != "" {
		if p.id != "" && p.id != d.ID && len(p.args) > 0 {
			return fmt.Errorf("index %d: id %q after %q: %w", d.Index, d.ID, p.id, types.ErrToolIndexReused)
		}
		p.id = d.ID
	}
	p.name = append(p.name, d.Name...)
	p.args = append(p.args, d.Arguments...)
	return nil
}

func (a *Assembler) Len() int {
	return len(a.pending)
}

// Finish returns the buffered calls ordered by index and resets the buffer.
// Calls with empty or malformed arguments are kept; calls without an id get one.
func (a *Assembler) Finish() []schema.ToolCall {
	if len(a.pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.pending))
	for idx := range a.pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	calls := make([]schema.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		p := a.pending[idx]
		id := p.id
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		index := idx
		calls = append(calls, schema.ToolCall{
			Index: &index,
			ID:    id,
			Type:  "function",
			Function: schema.FunctionCall{
				Name:      string(p.name),
				Arguments: string(p.args),
			},
		})
	}
	a.pending = make(map[int]*pendingCall)
	return calls
}
