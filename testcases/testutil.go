package testcases

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/dialogue"
	"github.com/tbxark/intakeagent/step"
)

// InitChatModel connects to the provider named by INTAKE_TEST_CONFIG (default ../config.json).
// The test is skipped unless INTAKE_RUN_LIVE_TESTS=1.
func InitChatModel(t *testing.T) model.ToolCallingChatModel {
	t.Helper()
	if os.Getenv("INTAKE_RUN_LIVE_TESTS") != "1" {
		t.Skip("set INTAKE_RUN_LIVE_TESTS=1 to run live LLM tests")
	}
	path := os.Getenv("INTAKE_TEST_CONFIG")
	if path == "" {
		path = "../config.json"
	}
	conf, err := config.Load(path)
	if err != nil {
		t.Skipf("failed to load config: %v", err)
	}
	if conf.Provider.APIKey == "" {
		t.Skip("provider api_key is empty")
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.Provider.APIKey,
		Model:   conf.Provider.Model,
		BaseURL: conf.Provider.BaseURL,
		Timeout: time.Duration(conf.Provider.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
	}
	return chatModel
}

// NewTestFlow builds an in-memory IntakeFlow on the live model and starts one session.
func NewTestFlow(t *testing.T, opts ...agent.FlowOption) (*agent.IntakeFlow, *agent.Snapshot) {
	t.Helper()
	chatModel := InitChatModel(t)
	steps := step.DefaultSchema()
	client, err := chat.NewClient(chatModel, steps)
	if err != nil {
		t.Fatalf("failed to create chat client: %v", err)
	}
	controller, err := dialogue.NewController(steps, client)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	flow, err := agent.NewIntakeFlow(controller, opts...)
	if err != nil {
		t.Fatalf("failed to create flow: %v", err)
	}
	start, err := flow.Start(context.Background())
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	return flow, start
}
