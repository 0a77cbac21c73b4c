package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/chat/chattest"
	"github.com/tbxark/intakeagent/dialogue"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

type fixture struct {
	fake *chattest.Model
	flow *agent.IntakeFlow
	srv  *httptest.Server
}

func newFixture(t *testing.T, turns ...chattest.Turn) *fixture {
	t.Helper()
	fake := chattest.NewModel(turns...)
	s := step.DefaultSchema()
	client, err := chat.NewClient(fake, s)
	require.NoError(t, err)
	controller, err := dialogue.NewController(s, client)
	require.NoError(t, err)
	flow, err := agent.NewIntakeFlow(controller)
	require.NoError(t, err)
	server, err := New(flow, client)
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &fixture{fake: fake, flow: flow, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	var v T
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &v), buf.String())
	return v
}

func readFrames[T any](t *testing.T, resp *http.Response) []T {
	t.Helper()
	var frames []T
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var v T
		require.NoError(t, sonic.UnmarshalString(line, &v), line)
		frames = append(frames, v)
	}
	require.NoError(t, scanner.Err())
	return frames
}

func (f *fixture) start(t *testing.T) *agent.Snapshot {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decode[agent.Snapshot](t, resp)
	require.NotEmpty(t, snap.ID)
	return &snap
}

func TestHealthAndSchema(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/schema", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[map[string]any](t, resp)
	steps, ok := doc["steps"].([]any)
	require.True(t, ok)
	assert.Len(t, steps, step.DefaultSchema().Len())
	assert.Contains(t, doc, "json_schema")
	assert.Contains(t, doc, "fields")
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, chattest.Text("Which industry are you in?"))
	snap := f.start(t)
	assert.Equal(t, "Business Profile", snap.Step)

	resp := f.do(t, http.MethodGet, "/api/sessions", "", nil)
	list := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{snap.ID}, list["sessions"])

	resp = f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/messages", `{"content":"We are Acme"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[agent.Snapshot](t, resp)
	assert.Equal(t, "Which industry are you in?", got.Message)

	resp = f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/submit", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "review")

	resp = f.do(t, http.MethodDelete, "/api/sessions/"+snap.ID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/sessions/"+snap.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessageValidation(t *testing.T) {
	f := newFixture(t)
	snap := f.start(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/messages", `{"content":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/messages", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/sessions/missing/messages", `{"content":"hi"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, f.fake.Calls())
}

func TestEditForm(t *testing.T) {
	f := newFixture(t)
	snap := f.start(t)

	resp := f.do(t, http.MethodPatch, "/api/sessions/"+snap.ID+"/form", `{"salary":"1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/sessions/"+snap.ID+"/form", `{"budget":"$5k"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "budget")

	resp = f.do(t, http.MethodPatch, "/api/sessions/"+snap.ID+"/form", `{"businessName":"Acme","industry":"retail"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[agent.Snapshot](t, resp)
	assert.Equal(t, "retail", got.Form["industry"])
	assert.Empty(t, got.Missing)

	resp = f.do(t, http.MethodGet, "/api/sessions/"+snap.ID+"/summary", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode[agent.Snapshot](t, resp).Message, "Acme")
}

func TestNavigationEndpoints(t *testing.T) {
	f := newFixture(t, chattest.Text("Tell me about the project."))
	snap := f.start(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/next", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Project Info", decode[agent.Snapshot](t, resp).Step)

	resp = f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/back", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Business Profile", decode[agent.Snapshot](t, resp).Step)
	assert.Equal(t, 1, f.fake.Calls())
}

func TestMessageEventStream(t *testing.T) {
	f := newFixture(t,
		chattest.Call("c1", chat.UpdateTaskInfoTool, `{"businessName":`, `"Acme"}`),
		chattest.Text("Nice. ", "Which industry?"),
	)
	snap := f.start(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/messages", `{"content":"We are Acme"}`,
		map[string]string{"Accept": "text/event-stream"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readFrames[envelope](t, resp)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	require.Equal(t, "snapshot", last.Type)
	assert.Equal(t, "Acme", last.Snapshot.Form["businessName"])
	assert.Equal(t, "Nice. Which industry?", last.Snapshot.Message)

	kinds := map[dialogue.EventKind]int{}
	for _, fr := range frames[:len(frames)-1] {
		require.Equal(t, "event", fr.Type)
		kinds[fr.Event.Kind]++
	}
	assert.Equal(t, 2, kinds[dialogue.EventContent])
	assert.Equal(t, 1, kinds[dialogue.EventFormUpdated])
	assert.Equal(t, 1, kinds[dialogue.EventToolCall])
}

func TestChatRelay(t *testing.T) {
	f := newFixture(t, chattest.Turn{Chunks: []*schema.Message{
		chattest.Content("Hello"),
		chattest.ToolDelta(0, "c1", chat.UpdateTaskInfoTool, `{"industry":"retail"}`),
		chattest.Finish("tool_calls"),
	}})
	body := `{"messages":[{"role":"user","content":"hi"}],"currentStepName":"Business Profile","formData":{"businessName":"Acme"}}`
	resp := f.do(t, http.MethodPost, "/chat", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	frames := readFrames[chat.Chunk](t, resp)
	require.Len(t, frames, 3)
	assert.Equal(t, "Hello", frames[0].Choices[0].Delta.Content)
	require.Len(t, frames[1].Choices[0].Delta.ToolCalls, 1)
	assert.Equal(t, "c1", frames[1].Choices[0].Delta.ToolCalls[0].ID)
	require.NotNil(t, frames[2].Choices[0].FinishReason)
	assert.Equal(t, "tool_calls", *frames[2].Choices[0].FinishReason)

	input := f.fake.Input(0)
	require.NotEmpty(t, input)
	assert.Contains(t, input[0].Content, "Acme")
}

func TestChatRelayErrors(t *testing.T) {
	f := newFixture(t,
		chattest.Turn{OpenErr: errors.New("error, status code: 401, message: bad key")},
		chattest.Turn{Chunks: []*schema.Message{chattest.Content("part")}, StreamErr: errors.New("connection reset")},
	)
	resp := f.do(t, http.MethodPost, "/chat", `{"messages":[{"role":"robot","content":"hi"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}],"currentStepName":"Payroll"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "Payroll")
	assert.Zero(t, f.fake.Calls())

	body := `{"messages":[{"role":"user","content":"hi"}],"currentStepName":"Business Profile"}`
	resp = f.do(t, http.MethodPost, "/chat", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, decode[errorBody](t, resp).Error)

	resp = f.do(t, http.MethodPost, "/chat", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	frames := readFrames[chat.Chunk](t, resp)
	require.Len(t, frames, 2)
	assert.NotEmpty(t, frames[1].Error)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{types.ErrSessionNotFound, http.StatusNotFound},
		{types.ErrSessionBusy, http.StatusConflict},
		{types.ErrAlreadySubmitted, http.StatusConflict},
		{fmt.Errorf("%w: budget", types.ErrFieldLocked), http.StatusConflict},
		{fmt.Errorf("%w: budget", types.ErrFormIncomplete), http.StatusUnprocessableEntity},
		{types.ErrUnknownField, http.StatusBadRequest},
		{errUnknownAction, http.StatusBadRequest},
		{&types.ProviderError{StatusCode: 429, Message: "slow down"}, http.StatusTooManyRequests},
		{&types.ProviderError{Message: "no status"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{context.Canceled, http.StatusRequestTimeout},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, statusOf(tc.err), tc.err.Error())
	}
}

func TestSocketSession(t *testing.T) {
	f := newFixture(t, chattest.Text("Which industry?"))
	snap := f.start(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/sessions/" + snap.ID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	read := func() envelope {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var env envelope
		require.NoError(t, sonic.Unmarshal(raw, &env))
		return env
	}

	first := read()
	require.Equal(t, "snapshot", first.Type)
	assert.Equal(t, snap.ID, first.Snapshot.ID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","content":"We are Acme"}`)))
	var final envelope
	for {
		env := read()
		if env.Type != "event" {
			final = env
			break
		}
	}
	require.Equal(t, "snapshot", final.Type)
	assert.Equal(t, "Which industry?", final.Snapshot.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	env := read()
	assert.Equal(t, "error", env.Type)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestSocketUnknownSession(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/sessions/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
