package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
)

const (
	parseCommandToolName        = "parse_command"
	parseCommandToolDescription = "Classify the user's message as a navigation command or none."
)

// DefaultCommandSystemPrompt is used by ToolCommandParser. The single "%s" is the tool name.
const DefaultCommandSystemPrompt = `You route messages for a step-by-step task intake chat.
Decide whether the user's message is a request to control the intake itself:
- back: return to the previous step (e.g. "go back", "previous step").
- next: skip to the next step without answering (e.g. "skip this", "next step").
- submit: submit the finished task (e.g. "submit it", "send it in").
- cancel: abandon the intake altogether (e.g. "cancel", "forget it, stop").
- summary: show what has been collected so far (e.g. "what do you have so far?").
- none: anything else, including answers, questions, and plain agreement such as "yes" or "ok".
When unsure, answer none.
Call the '%s' tool with the result.`

type parsedCommand struct {
	Command Command `json:"command" jsonschema:"required,enum=back,enum=next,enum=submit,enum=cancel,enum=summary,enum=none,description=The navigation command expressed by the message"`
}

// ToolCommandParser asks the model to classify free text. It costs one extra model call
// per message, so it is normally placed after a LocalCommandParser.
type ToolCommandParser struct {
	extractor *structured.Extractor[string, parsedCommand]
}

func NewToolCommandParser(chatModel model.ToolCallingChatModel, systemPrompt string) (*ToolCommandParser, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultCommandSystemPrompt
	}
	system := fmt.Sprintf(systemPrompt, parseCommandToolName)
	extractor, err := structured.NewExtractor[string, parsedCommand](
		chatModel,
		func(ctx context.Context, input string) ([]*schema.Message, error) {
			return []*schema.Message{
				schema.SystemMessage(system),
				schema.UserMessage(input),
			}, nil
		},
		parseCommandToolName,
		parseCommandToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolCommandParser{extractor: extractor}, nil
}

func (p *ToolCommandParser) ParseCommand(ctx context.Context, input string) (Command, error) {
	result, err := p.extractor.Extract(ctx, input)
	if err != nil {
		return None, err
	}
	switch result.Command {
	case Back, Next, Submit, Cancel, Summary:
		slog.Debug("Command recognized by model", "command", result.Command)
		return result.Command, nil
	case None, "":
		return None, nil
	}
	return None, fmt.Errorf("unknown command %q returned by %s", result.Command, parseCommandToolName)
}
