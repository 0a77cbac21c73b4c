package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/chat/chattest"
	"github.com/tbxark/intakeagent/types"
)

func frame(t *testing.T, msg *schema.Message) string {
	t.Helper()
	raw, err := sonic.Marshal(ChunkFromMessage(msg))
	require.NoError(t, err)
	return string(raw) + "\n\n"
}

func TestRemoteClientDecodesFrames(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(frame(t, chattest.Content("Hi"))))
		_, _ = w.Write([]byte("data: " + frame(t, chattest.ToolDelta(0, "call_9", "completeStep", "{}"))))
		_, _ = w.Write([]byte(frame(t, chattest.Finish("tool_calls"))))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, srv.Client())
	stream, err := client.Stream(context.Background(), &Request{
		StepName: "Project Info",
		Form:     types.FormState{"businessName": "Acme Inc"},
		History:  []*schema.Message{schema.UserMessage("yes")},
	})
	require.NoError(t, err)
	defer stream.Close()

	deltas, err := collect(t, stream)
	require.NoError(t, err)
	require.Len(t, deltas, 3)
	assert.Equal(t, "Hi", deltas[0].Text)
	assert.Equal(t, "call_9", deltas[1].ToolCall.ID)
	assert.Equal(t, "completeStep", deltas[1].ToolCall.Name)
	assert.Equal(t, Delta{Kind: DeltaDone, FinishReason: "tool_calls"}, deltas[2])

	assert.Equal(t, "Project Info", got.CurrentStepName)
	assert.Equal(t, "Acme Inc", got.FormData["businessName"])
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestRemoteClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL, nil).Stream(context.Background(), &Request{StepName: "Review"})
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "quota exceeded", perr.Message)
}

func TestRemoteClientErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(frame(t, chattest.Content("Hal"))))
		_, _ = w.Write([]byte(`{"choices":[],"error":"upstream closed"}` + "\n\n"))
	}))
	defer srv.Close()

	stream, err := NewRemoteClient(srv.URL, nil).Stream(context.Background(), &Request{StepName: "Review"})
	require.NoError(t, err)
	deltas, err := collect(t, stream)
	require.Len(t, deltas, 1)
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "upstream closed", perr.Message)
}

func TestWireMessagesRoundTrip(t *testing.T) {
	idx := 0
	history := []*schema.Message{
		schema.UserMessage("We're Acme Inc"),
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{
			Index: &idx, ID: "call_1", Type: "function",
			Function: schema.FunctionCall{Name: "updateTaskInfo", Arguments: `{"businessName":"Acme Inc"}`},
		}}},
		{Role: schema.Tool, Content: `{"success":true}`, ToolCallID: "call_1", ToolName: "updateTaskInfo"},
	}
	wire := ToWireMessages(history)
	require.Len(t, wire, 3)
	assert.Nil(t, wire[1].Content)
	assert.Equal(t, "updateTaskInfo", wire[2].Name)

	back, err := FromWireMessages(wire)
	require.NoError(t, err)
	assert.Equal(t, history[0].Content, back[0].Content)
	assert.Equal(t, history[1].ToolCalls, back[1].ToolCalls)
	assert.Equal(t, "call_1", back[2].ToolCallID)
	assert.Equal(t, "updateTaskInfo", back[2].ToolName)
}

func TestFromWireMessagesRejectsBadRoles(t *testing.T) {
	_, err := FromWireMessages([]WireMessage{{Role: "ai"}})
	assert.Error(t, err)
	_, err = FromWireMessages([]WireMessage{{Role: "tool"}})
	assert.Error(t, err)
}
