package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run an intake session in the terminal",
		Long:  "Run an intake session in the terminal. Use /next, /back, /summary, /submit and /cancel to drive the form directly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, closeLog, err := root.load()
			if err != nil {
				return err
			}
			defer closeLog()
			a, err := newApp(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer a.Close()
			return runChat(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	start, err := a.flow.Start(ctx)
	if err != nil {
		return err
	}
	ctx = agent.WithStateKey(ctx, start.ID)
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent:           agent.NewAgent("TaskIntake", "Collects task requirements step by step", a.flow),
		EnableStreaming: true,
	})
	fmt.Fprintf(out, "[%s]\nAgent: %s\n", start.Step, start.Message)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "You: ")
		line, rErr := reader.ReadString('\n')
		input := strings.TrimSpace(line)
		if input != "" {
			fmt.Fprint(out, "Agent: ")
			if err := printTurn(runner.Query(ctx, input), out); err != nil {
				fmt.Fprintf(out, "\n(error: %v)\n", err)
			}
			fmt.Fprintln(out)

			snap, err := a.flow.Snapshot(ctx, start.ID)
			if errors.Is(err, types.ErrSessionNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if snap.Submitted {
				fmt.Fprintln(out, types.FormatFieldTable("Submitted task", a.steps.Fields(), snap.Form))
				return nil
			}
			fmt.Fprintf(out, "[%s]\n", snap.Step)
		}
		if rErr != nil {
			if errors.Is(rErr, io.EOF) {
				return nil
			}
			return rErr
		}
	}
}

func printTurn(iter *adk.AsyncIterator[*adk.AgentEvent], out io.Writer) error {
	for {
		event, ok := iter.Next()
		if !ok {
			return nil
		}
		if event.Err != nil {
			return event.Err
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}
		mo := event.Output.MessageOutput
		if !mo.IsStreaming {
			if mo.Message != nil {
				fmt.Fprint(out, mo.Message.Content)
			}
			continue
		}
		for {
			chunk, err := mo.MessageStream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			fmt.Fprint(out, chunk.Content)
		}
	}
}
