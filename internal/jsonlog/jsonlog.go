package jsonlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a case-insensitive level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	sessionIDKey     contextKey = "session_id"
)

// WithCorrelationID returns a copy of ctx carrying the request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation ID stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithSessionID returns a copy of ctx carrying the form session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the form session ID stored in ctx, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

type Logger struct {
	out      io.Writer
	minLevel Level
	slogger  *slog.Logger
}

func New(out io.Writer, minLevel Level, env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: minLevel.ToSlogLevel(),
	}

	if env == "development" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{
		out:      out,
		minLevel: minLevel,
		slogger:  slog.New(handler),
	}
}

func (l *Logger) Info(msg string, attrs ...any) {
	l.slogger.Info(msg, attrs...)
}

func (l *Logger) Error(msg string, attrs ...any) {
	l.slogger.Error(msg, attrs...)
}

func (l *Logger) Debug(msg string, attrs ...any) {
	l.slogger.Debug(msg, attrs...)
}

func (l *Logger) Warn(msg string, attrs ...any) {
	l.slogger.Warn(msg, attrs...)
}

// Write lets the logger back a *log.Logger such as http.Server.ErrorLog.
// JSON objects keep their level and attributes; anything else is logged
// as an error line.
func (l *Logger) Write(message []byte) (int, error) {
	trimmed := bytes.TrimSpace(message)

	var entry map[string]any
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		l.Error(string(trimmed), "source", "stdlog")
		return len(message), nil
	}

	level, _ := entry["level"].(string)
	msg, ok := entry["msg"].(string)
	if !ok {
		msg = "log entry"
	}

	delete(entry, "level")
	delete(entry, "msg")

	attrs := make([]any, 0, len(entry)*2)
	for key, value := range entry {
		attrs = append(attrs, key, value)
	}

	switch level {
	case "DEBUG":
		l.Debug(msg, attrs...)
	case "WARN":
		l.Warn(msg, attrs...)
	case "ERROR":
		l.Error(msg, attrs...)
	default:
		l.Info(msg, attrs...)
	}

	return len(message), nil
}

func withContext(ctx context.Context, attrs []any) []any {
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, "correlation_id", id)
	}
	if id := SessionID(ctx); id != "" {
		attrs = append(attrs, "session_id", id)
	}
	return attrs
}

func (l *Logger) InfoWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Info(msg, withContext(ctx, attrs)...)
}

func (l *Logger) ErrorWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Error(msg, withContext(ctx, attrs)...)
}

func (l *Logger) DebugWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Debug(msg, withContext(ctx, attrs)...)
}

func (l *Logger) WarnWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Warn(msg, withContext(ctx, attrs)...)
}

func (l *Logger) PrintFatal(err error, properties map[string]string) {
	attrs := make([]any, 0, len(properties)*2+4)
	attrs = append(attrs, "error", err.Error(), "stack", string(debug.Stack()))

	for key, value := range properties {
		attrs = append(attrs, key, value)
	}

	l.Error("fatal error", attrs...)
	os.Exit(1)
}
