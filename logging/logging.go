package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tbxark/intakeagent/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs the default slog logger described by conf. The returned closer
// releases the log file, if any.
func Setup(conf config.LogConfig) (io.Closer, error) {
	level, err := ParseLevel(conf.Level)
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if conf.File != "" {
		file := &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
			MaxAge:     conf.MaxAgeDays,
			Compress:   conf.Compress,
		}
		w = file
		closer = file
	}
	slog.SetDefault(slog.New(NewHandler(w, conf.Format, level)))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
