package chat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/types"
)

const maxFrameSize = 1 << 20

// RemoteClient streams completions through another instance's POST /chat endpoint.
type RemoteClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewRemoteClient(endpoint string, httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{endpoint: endpoint, httpClient: httpClient}
}

func (c *RemoteClient) Stream(ctx context.Context, req *Request) (*Stream, error) {
	form := map[string]string(req.Form)
	if form == nil {
		form = map[string]string{}
	}
	body, err := sonic.Marshal(ChatRequest{
		Messages:        ToWireMessages(req.History),
		CurrentStepName: req.StepName,
		FormData:        form,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.AsProviderError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeErrorBody(resp)
	}
	return newStream(ctx, newFrameSource(resp.Body)), nil
}

func decodeErrorBody(resp *http.Response) *types.ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if err := sonic.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	if message == "" {
		message = resp.Status
	}
	return &types.ProviderError{StatusCode: resp.StatusCode, Message: message}
}

// frameSource reads blank-line separated JSON chunks. A "data: " prefix and a
// final "[DONE]" frame are tolerated.
type frameSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newFrameSource(body io.ReadCloser) *frameSource {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	scanner.Split(splitFrames)
	return &frameSource{body: body, scanner: scanner}
}

func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (f *frameSource) Recv() (*schema.Message, error) {
	for f.scanner.Scan() {
		frame := bytes.TrimSpace(f.scanner.Bytes())
		frame = bytes.TrimPrefix(frame, []byte("data: "))
		if len(frame) == 0 {
			continue
		}
		if bytes.Equal(frame, []byte("[DONE]")) {
			return nil, io.EOF
		}
		var chunk Chunk
		if err := sonic.Unmarshal(frame, &chunk); err != nil {
			return nil, fmt.Errorf("decode stream frame: %w", err)
		}
		if chunk.Error != "" {
			return nil, &types.ProviderError{Message: chunk.Error}
		}
		return chunk.Message(), nil
	}
	if err := f.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (f *frameSource) Close() {
	_ = f.body.Close()
}

var _ Streamer = (*RemoteClient)(nil)
