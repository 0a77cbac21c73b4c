package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/command"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/dialogue"
	"github.com/tbxark/intakeagent/step"
)

// app holds everything built from one config.
type app struct {
	steps  *step.Schema
	client *chat.Client
	flow   *agent.IntakeFlow
	db     *sql.DB
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	if conf.Provider.APIKey == "" {
		return nil, errors.New("provider.api_key is required (or set OPENAI_API_KEY)")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.Provider.APIKey,
		Model:   conf.Provider.Model,
		BaseURL: conf.Provider.BaseURL,
		Timeout: time.Duration(conf.Provider.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	steps := step.DefaultSchema()
	promptOpts := []chat.PromptOption{chat.WithBrand(conf.Dialogue.Brand)}
	if conf.Dialogue.Intro != "" {
		promptOpts = append(promptOpts, chat.WithIntroTemplate(conf.Dialogue.Intro))
	}
	client, err := chat.NewClient(cm, steps,
		chat.WithPromptOptions(promptOpts...),
		chat.WithContextLimit(conf.Dialogue.ContextLimit),
	)
	if err != nil {
		return nil, err
	}
	controllerOpts := []dialogue.Option{
		dialogue.WithMaxToolHops(conf.Dialogue.MaxToolHops),
		dialogue.WithTransitionRole(schema.RoleType(conf.Dialogue.TransitionRole)),
	}
	if conf.Dialogue.TransitionTemplate != "" {
		controllerOpts = append(controllerOpts, dialogue.WithTransitionTemplate(conf.Dialogue.TransitionTemplate))
	}
	controller, err := dialogue.NewController(steps, client, controllerOpts...)
	if err != nil {
		return nil, err
	}

	a := &app{steps: steps, client: client}
	greeting := conf.Dialogue.Greeting
	if greeting == "" {
		greeting = fmt.Sprintf(agent.DefaultGreeting, conf.Dialogue.Brand)
	}
	flowOpts := []agent.FlowOption{agent.WithGreeting(greeting)}
	if conf.Dialogue.LLMCommands {
		toolParser, err := command.NewToolCommandParser(cm, "")
		if err != nil {
			return nil, err
		}
		flowOpts = append(flowOpts, agent.WithCommandParser(command.NewFailbackCommandParser(command.NewLocalCommandParser(), toolParser)))
	}
	switch conf.Store.Driver {
	case "sqlite":
		db, err := agent.OpenSQLite(conf.Store.Path)
		if err != nil {
			return nil, err
		}
		a.db = db
		flowOpts = append(flowOpts,
			agent.WithStateStore(agent.NewStateStore(agent.NewSQLiteCache[*agent.Session](db))),
			agent.WithHistoryStore(agent.NewHistoryStore(agent.NewSQLiteCache[[]*schema.Message](db))),
			agent.WithFormManager(agent.NewSQLiteFormManager(db)),
		)
		slog.Info("Using sqlite store", "path", conf.Store.Path)
	default:
		flowOpts = append(flowOpts, agent.WithHistoryStore(agent.NewMemoryHistoryStore()))
	}
	a.flow, err = agent.NewIntakeFlow(controller, flowOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
