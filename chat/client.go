package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// Client streams completions from an eino tool calling chat model with the intake tools attached.
type Client struct {
	chatModel model.ToolCallingChatModel
	tools     []*schema.ToolInfo
	prompt    PromptBuilder
	trimmer   Trimmer
}

type clientOptions struct {
	prompt        PromptBuilder
	promptOptions []PromptOption
	trimmer       Trimmer
}

type ClientOption func(*clientOptions)

// WithPromptBuilder replaces the system prompt builder entirely.
func WithPromptBuilder(builder PromptBuilder) ClientOption {
	return func(o *clientOptions) {
		o.prompt = builder
	}
}

// WithContextLimit sends at most about n non-system history messages per call.
// The conversation itself is left untouched. n <= 0 sends the whole history.
func WithContextLimit(n int) ClientOption {
	return func(o *clientOptions) {
		o.trimmer = KeepSystemLastNTrimmer{N: n}
	}
}

// WithPromptOptions tunes the default system prompt builder.
func WithPromptOptions(opts ...PromptOption) ClientOption {
	return func(o *clientOptions) {
		o.promptOptions = append(o.promptOptions, opts...)
	}
}

func NewClient(chatModel model.ToolCallingChatModel, s *step.Schema, opts ...ClientOption) (*Client, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if s == nil {
		return nil, fmt.Errorf("step schema is required")
	}
	options := clientOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.prompt == nil {
		options.prompt = NewPromptBuilder(s, options.promptOptions...)
	}
	return &Client{
		chatModel: chatModel,
		tools:     Tools(s),
		prompt:    options.prompt,
		trimmer:   options.trimmer,
	}, nil
}

// Messages is the full input of one call: the rebuilt system prompt followed by the history.
func (c *Client) Messages(req *Request) ([]*schema.Message, error) {
	systemPrompt, err := c.prompt(req)
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}
	history := req.History
	if c.trimmer != nil {
		history = c.trimmer.Trim(history)
	}
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, m := range history {
		if m != nil {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

// StreamChunks returns the raw model chunks, used when relaying them over HTTP.
func (c *Client) StreamChunks(ctx context.Context, req *Request) (*schema.StreamReader[*schema.Message], error) {
	messages, err := c.Messages(req)
	if err != nil {
		return nil, err
	}
	slog.Debug("Opening completion stream", "step", req.StepName, "history", len(req.History))
	reader, err := c.chatModel.Stream(ctx, messages, model.WithTools(c.tools))
	if err != nil {
		return nil, types.AsProviderError(fmt.Errorf("LLM stream call failed: %w", err))
	}
	return reader, nil
}

func (c *Client) Stream(ctx context.Context, req *Request) (*Stream, error) {
	reader, err := c.StreamChunks(ctx, req)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, reader), nil
}

var _ Streamer = (*Client)(nil)
