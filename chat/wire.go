package chat

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// The wire types follow the OpenAI chat completion format, which is what the /chat
// endpoint accepts and relays.

type WireFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type WireToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function WireFunction `json:"function"`
}

type WireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages        []WireMessage     `json:"messages"`
	CurrentStepName string            `json:"currentStepName"`
	FormData        map[string]string `json:"formData"`
}

type ChunkDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []WireToolCall `json:"tool_calls,omitempty"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type ChunkUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is one streamed delta object. Error is only set on a frame reporting a
// failure after the stream started.
type Chunk struct {
	Object  string        `json:"object,omitempty"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *ChunkUsage   `json:"usage,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func toWireToolCalls(calls []schema.ToolCall) []WireToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]WireToolCall, len(calls))
	for i, tc := range calls {
		typ := tc.Type
		if typ == "" && tc.ID != "" {
			typ = "function"
		}
		out[i] = WireToolCall{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  typ,
			Function: WireFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func fromWireToolCalls(calls []WireToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = schema.ToolCall{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  tc.Type,
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

// ChunkFromMessage encodes a model chunk as a provider style delta object.
func ChunkFromMessage(msg *schema.Message) Chunk {
	choice := ChunkChoice{
		Delta: ChunkDelta{
			Role:      string(msg.Role),
			Content:   msg.Content,
			ToolCalls: toWireToolCalls(msg.ToolCalls),
		},
	}
	chunk := Chunk{Object: "chat.completion.chunk"}
	if msg.ResponseMeta != nil {
		if msg.ResponseMeta.FinishReason != "" {
			reason := msg.ResponseMeta.FinishReason
			choice.FinishReason = &reason
		}
		if u := msg.ResponseMeta.Usage; u != nil {
			chunk.Usage = &ChunkUsage{
				PromptTokens:     u.PromptTokens,
				CompletionTokens: u.CompletionTokens,
				TotalTokens:      u.TotalTokens,
			}
		}
	}
	chunk.Choices = []ChunkChoice{choice}
	return chunk
}

// Message decodes the first choice of the chunk back into an eino message chunk.
func (c Chunk) Message() *schema.Message {
	msg := &schema.Message{Role: schema.Assistant}
	if len(c.Choices) > 0 {
		choice := c.Choices[0]
		if choice.Delta.Role != "" {
			msg.Role = schema.RoleType(choice.Delta.Role)
		}
		msg.Content = choice.Delta.Content
		msg.ToolCalls = fromWireToolCalls(choice.Delta.ToolCalls)
		if choice.FinishReason != nil {
			msg.ResponseMeta = &schema.ResponseMeta{FinishReason: *choice.FinishReason}
		}
	}
	if c.Usage != nil {
		if msg.ResponseMeta == nil {
			msg.ResponseMeta = &schema.ResponseMeta{}
		}
		msg.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		}
	}
	return msg
}

func ToWireMessages(history []*schema.Message) []WireMessage {
	out := make([]WireMessage, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		wm := WireMessage{
			Role:       string(m.Role),
			ToolCalls:  toWireToolCalls(m.ToolCalls),
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		if m.Role == schema.Tool && m.ToolName != "" {
			wm.Name = m.ToolName
		}
		if m.Content != "" || len(m.ToolCalls) == 0 {
			content := m.Content
			wm.Content = &content
		}
		out = append(out, wm)
	}
	return out
}

func FromWireMessages(messages []WireMessage) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(messages))
	for i, wm := range messages {
		role := schema.RoleType(wm.Role)
		switch role {
		case schema.System, schema.User, schema.Assistant, schema.Tool:
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, wm.Role)
		}
		if role == schema.Tool && wm.ToolCallID == "" {
			return nil, fmt.Errorf("message %d: tool message without tool_call_id", i)
		}
		msg := &schema.Message{
			Role:       role,
			ToolCalls:  fromWireToolCalls(wm.ToolCalls),
			ToolCallID: wm.ToolCallID,
		}
		if wm.Content != nil {
			msg.Content = *wm.Content
		}
		if role == schema.Tool {
			msg.ToolName = wm.Name
		} else {
			msg.Name = wm.Name
		}
		out = append(out, msg)
	}
	return out, nil
}
