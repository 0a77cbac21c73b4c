// Package structured extracts typed values from a chat model by forcing a single tool call.
package structured

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

type PromptBuilder[In any] func(ctx context.Context, input In) ([]*schema.Message, error)

// Extractor asks the model to call one tool whose parameters are the fields of Out and
// decodes the call arguments into Out.
type Extractor[In, Out any] struct {
	chatModel model.ToolCallingChatModel
	prompt    PromptBuilder[In]
	tool      *schema.ToolInfo
}

func NewExtractor[In, Out any](chatModel model.ToolCallingChatModel, prompt PromptBuilder[In], toolName, toolDesc string) (*Extractor[In, Out], error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if prompt == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	tool, err := utils.GoStruct2ToolInfo[Out](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Extractor[In, Out]{
		chatModel: chatModel,
		prompt:    prompt,
		tool:      tool,
	}, nil
}

func (e *Extractor[In, Out]) Tool() *schema.ToolInfo {
	return e.tool
}

func (e *Extractor[In, Out]) Extract(ctx context.Context, input In) (*Out, error) {
	messages, err := e.prompt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}
	resp, err := e.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{e.tool}),
		model.WithToolChoice(schema.ToolChoiceForced, e.tool.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	for _, call := range resp.ToolCalls {
		if call.Function.Name != "" && call.Function.Name != e.tool.Name {
			continue
		}
		var out Out
		if err := sonic.UnmarshalString(call.Function.Arguments, &out); err != nil {
			return nil, fmt.Errorf("parse %s arguments failed: %w", e.tool.Name, err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("model did not call %s: %q", e.tool.Name, resp.Content)
}
