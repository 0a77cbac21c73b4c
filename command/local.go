package command

import (
	"context"
	"fmt"
	"strings"
)

// LocalCommandParser matches whole inputs against keyword lists. Matching ignores case
// and surrounding space; anything else is None and goes to the model.
type LocalCommandParser struct {
	Keywords map[Command][]string
}

func NewLocalCommandParser() *LocalCommandParser {
	return &LocalCommandParser{
		Keywords: map[Command][]string{
			Back:    {"/back", "/prev"},
			Next:    {"/next", "/skip"},
			Submit:  {"/submit"},
			Cancel:  {"/cancel", "/quit", "/exit"},
			Summary: {"/summary", "/status"},
		},
	}
}

func (p *LocalCommandParser) ParseCommand(ctx context.Context, input string) (Command, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return None, nil
	}
	for _, cmd := range []Command{Back, Next, Submit, Cancel, Summary} {
		for _, keyword := range p.Keywords[cmd] {
			if normalized == keyword {
				return cmd, nil
			}
		}
	}
	return None, nil
}

type FailbackCommandParser struct {
	parsers []Parser
}

func NewFailbackCommandParser(parsers ...Parser) *FailbackCommandParser {
	return &FailbackCommandParser{parsers: parsers}
}

// ParseCommand returns the first command any parser recognizes.
func (p *FailbackCommandParser) ParseCommand(ctx context.Context, input string) (Command, error) {
	var lastErr error
	for _, parser := range p.parsers {
		cmd, err := parser.ParseCommand(ctx, input)
		if err != nil {
			lastErr = err
			continue
		}
		if cmd != None {
			return cmd, nil
		}
	}
	if lastErr != nil {
		return None, fmt.Errorf("all command parsers failed: %w", lastErr)
	}
	return None, nil
}
