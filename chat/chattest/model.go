// Package chattest provides a scripted tool calling chat model for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Turn is the scripted reply to one Stream call.
type Turn struct {
	Chunks []*schema.Message
	// OpenErr fails the Stream call itself.
	OpenErr error
	// StreamErr is delivered after the chunks.
	StreamErr error
	// Block keeps the stream open after the chunks until the call context ends.
	Block bool
}

// Model replays its turns in order and records every input it receives.
type Model struct {
	mu     sync.Mutex
	turns  []Turn
	inputs [][]*schema.Message
	tools  []*schema.ToolInfo
}

func NewModel(turns ...Turn) *Model {
	return &Model{turns: turns}
}

// Push appends more scripted turns.
func (m *Model) Push(turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// Input returns the messages of the i-th call.
func (m *Model) Input(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	return m.inputs[i]
}

// Tools returns the tools passed on the latest call.
func (m *Model) Tools() []*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

func (m *Model) next(input []*schema.Message, opts []model.Option) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]*schema.Message, len(input))
	for i, msg := range input {
		cp := *msg
		snapshot[i] = &cp
	}
	m.inputs = append(m.inputs, snapshot)
	if common := model.GetCommonOptions(&model.Options{}, opts...); common.Tools != nil {
		m.tools = common.Tools
	}
	if len(m.turns) == 0 {
		return Turn{}, fmt.Errorf("chattest: no scripted turn left for call %d", len(m.inputs))
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	return turn, nil
}

func (m *Model) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	turn, err := m.next(input, opts)
	if err != nil {
		return nil, err
	}
	if turn.OpenErr != nil {
		return nil, turn.OpenErr
	}
	if turn.StreamErr != nil {
		return nil, turn.StreamErr
	}
	if len(turn.Chunks) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}
	return schema.ConcatMessages(turn.Chunks)
}

func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	turn, err := m.next(input, opts)
	if err != nil {
		return nil, err
	}
	if turn.OpenErr != nil {
		return nil, turn.OpenErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(turn.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range turn.Chunks {
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
		if turn.Block {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
			return
		}
		if turn.StreamErr != nil {
			sw.Send(nil, turn.StreamErr)
		}
	}()
	return sr, nil
}

func (m *Model) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ model.ToolCallingChatModel = (*Model)(nil)
