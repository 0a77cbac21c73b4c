package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/types"
)

var (
	errBadRequest    = errors.New("bad request")
	errUnknownAction = errors.New("unknown action")
)

type errorBody struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	var perr *types.ProviderError
	switch {
	case errors.As(err, &perr):
		return perr.HTTPStatus()
	case errors.Is(err, errBadRequest), errors.Is(err, errUnknownAction), errors.Is(err, types.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrSessionBusy),
		errors.Is(err, types.ErrNotOnReview),
		errors.Is(err, types.ErrFieldLocked),
		errors.Is(err, types.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, types.ErrFormIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		slog.Error("Encode response failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	} else {
		slog.Debug("Request rejected", "status", status, "error", err)
	}
	message := err.Error()
	var perr *types.ProviderError
	if errors.As(err, &perr) {
		message = perr.Message
	}
	writeJSON(w, status, errorBody{Error: message})
}

// frameWriter writes blank-line separated JSON frames and flushes each one.
type frameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newFrameWriter(w http.ResponseWriter) *frameWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	return &frameWriter{w: w, flusher: flusher}
}

func (f *frameWriter) Write(v any) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	raw = append(raw, '\n', '\n')
	if _, err := f.w.Write(raw); err != nil {
		return err
	}
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return nil
}
