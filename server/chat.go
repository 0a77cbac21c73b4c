package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/chat"
	"github.com/tbxark/intakeagent/types"
)

const maxBodySize = 4 << 20

// handleChat relays one completion for a caller that keeps its own history and form.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CurrentStepName != "" {
		if _, ok := s.steps.IndexOf(req.CurrentStepName); !ok {
			writeError(w, fmt.Errorf("%w: unknown step %q", errBadRequest, req.CurrentStepName))
			return
		}
	}
	history, err := chat.FromWireMessages(req.Messages)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	reader, err := s.chunks.StreamChunks(r.Context(), &chat.Request{
		StepName: req.CurrentStepName,
		Form:     types.FormState(req.FormData),
		History:  history,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	frames := newFrameWriter(w)
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			perr := types.AsProviderError(err)
			slog.Warn("Chat relay interrupted", "step", req.CurrentStepName, "error", err)
			_ = frames.Write(chat.Chunk{Choices: []chat.ChunkChoice{}, Error: perr.Message})
			return
		}
		if err := frames.Write(chat.ChunkFromMessage(msg)); err != nil {
			slog.Debug("Chat client went away", "error", err)
			return
		}
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}
