package chat

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/toolcall"
	"github.com/tbxark/intakeagent/types"
)

type DeltaKind string

const (
	DeltaContent  DeltaKind = "content"
	DeltaToolCall DeltaKind = "tool_call"
	DeltaDone     DeltaKind = "done"
)

// Delta is one decoded piece of a streamed completion.
type Delta struct {
	Kind         DeltaKind       `json:"kind"`
	Text         string          `json:"text,omitempty"`
	ToolCall     *toolcall.Delta `json:"tool_call,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// Request is everything one completion call depends on. The system prompt is
// derived from StepName and Form on every call.
type Request struct {
	StepName string
	Form     types.FormState
	History  []*schema.Message
}

// Streamer opens one streamed completion. The returned Stream is single use.
type Streamer interface {
	Stream(ctx context.Context, req *Request) (*Stream, error)
}

type chunkSource interface {
	Recv() (*schema.Message, error)
	Close()
}

// Stream decodes message chunks into deltas. Recv yields DeltaDone once and io.EOF after it.
type Stream struct {
	ctx          context.Context
	src          chunkSource
	queue        []Delta
	finishReason string
	done         bool
}

func newStream(ctx context.Context, src chunkSource) *Stream {
	return &Stream{ctx: ctx, src: src}
}

func (s *Stream) Recv() (Delta, error) {
	for len(s.queue) == 0 {
		if s.done {
			return Delta{}, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return Delta{}, err
		}
		chunk, err := s.src.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.queue = append(s.queue, Delta{Kind: DeltaDone, FinishReason: s.finishReason})
			break
		}
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return Delta{}, ctxErr
			}
			return Delta{}, types.AsProviderError(err)
		}
		s.push(chunk)
	}
	d := s.queue[0]
	s.queue = s.queue[1:]
	return d, nil
}

func (s *Stream) push(chunk *schema.Message) {
	if chunk == nil {
		return
	}
	if chunk.ResponseMeta != nil && chunk.ResponseMeta.FinishReason != "" {
		s.finishReason = chunk.ResponseMeta.FinishReason
	}
	if chunk.Content != "" {
		s.queue = append(s.queue, Delta{Kind: DeltaContent, Text: chunk.Content})
	}
	for i, tc := range chunk.ToolCalls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		s.queue = append(s.queue, Delta{
			Kind: DeltaToolCall,
			ToolCall: &toolcall.Delta{
				Index:     index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
}

func (s *Stream) Close() {
	if s.src != nil {
		s.src.Close()
	}
}
