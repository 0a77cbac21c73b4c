package chattest

import "github.com/cloudwego/eino/schema"

func Content(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

// ToolDelta is a chunk carrying one tool call fragment.
func ToolDelta(index int, id, name, args string) *schema.Message {
	idx := index
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index: &idx,
			ID:    id,
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}
}

func Finish(reason string) *schema.Message {
	return &schema.Message{
		Role:         schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{FinishReason: reason},
	}
}

// Text is a plain reply split into the given chunks.
func Text(parts ...string) Turn {
	chunks := make([]*schema.Message, 0, len(parts)+1)
	for _, p := range parts {
		chunks = append(chunks, Content(p))
	}
	chunks = append(chunks, Finish("stop"))
	return Turn{Chunks: chunks}
}

// Call is a reply made of a single tool call whose arguments arrive in the given fragments.
func Call(id, name string, argFragments ...string) Turn {
	chunks := []*schema.Message{ToolDelta(0, id, name, "")}
	for _, f := range argFragments {
		chunks = append(chunks, ToolDelta(0, "", "", f))
	}
	chunks = append(chunks, Finish("tool_calls"))
	return Turn{Chunks: chunks}
}
