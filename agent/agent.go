package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/dialogue"
)

var _ adk.Agent = (*Agent)(nil)

// Agent exposes an IntakeFlow to adk runners. The session is taken from WithStateKey
// and the last input message is sent to it.
type Agent struct {
	name        string
	description string
	flow        *IntakeFlow
}

func NewAgent(name, description string, flow *IntakeFlow) *Agent {
	return &Agent{
		name:        name,
		description: description,
		flow:        flow,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		id, ok := StateKeyFromContext(ctx)
		if !ok || id == "" {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no session key in context"),
			})
			return
		}
		if len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		text := input.Messages[len(input.Messages)-1].Content

		if !input.EnableStreaming {
			snap, err := a.flow.Send(ctx, id, text, nil)
			if err != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("flow send failed: %w", err),
				})
				return
			}
			gen.Send(&adk.AgentEvent{
				AgentName: a.name,
				Output: &adk.AgentOutput{
					MessageOutput: &adk.MessageVariant{
						IsStreaming: false,
						Message:     schema.AssistantMessage(snap.Message, nil),
						Role:        schema.Assistant,
					},
				},
			})
			return
		}

		sr, sw := schema.Pipe[*schema.Message](64)
		gen.Send(&adk.AgentEvent{
			AgentName: a.name,
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming:   true,
					MessageStream: sr,
					Role:          schema.Assistant,
				},
			},
		})
		defer sw.Close()

		streamed := false
		snap, err := a.flow.Send(ctx, id, text, func(e dialogue.Event) {
			if e.Kind == dialogue.EventContent {
				streamed = true
				sw.Send(&schema.Message{Role: schema.Assistant, Content: e.Text}, nil)
			}
		})
		if err != nil {
			sw.Send(nil, fmt.Errorf("flow send failed: %w", err))
			return
		}
		if !streamed && snap.Message != "" {
			sw.Send(schema.AssistantMessage(snap.Message, nil), nil)
		}
	}()
	return iter
}
