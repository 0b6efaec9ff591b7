package agentlog

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func levelFromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// SimpleLogger is a leveled, structured-field logger that writes one line
// per call via the standard library "log" package. It is a reference
// implementation good enough for local development and tests; production
// deployments are expected to bring their own Logger.
type SimpleLogger struct {
	mu        sync.Mutex
	level     Level
	component string
	fields    map[string]interface{}
}

// NewSimpleLogger creates a SimpleLogger at LevelInfo, or at the level
// named by the LOG_LEVEL environment variable if set.
func NewSimpleLogger() *SimpleLogger {
	level := LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = levelFromString(v)
	}
	return &SimpleLogger{level: level}
}

func (l *SimpleLogger) WithComponent(component string) Logger {
	return &SimpleLogger{level: l.level, component: component, fields: l.fields}
}

func (l *SimpleLogger) Info(msg string, fields map[string]interface{}) {
	l.emit(LevelInfo, "INFO", msg, fields)
}
func (l *SimpleLogger) Warn(msg string, fields map[string]interface{}) {
	l.emit(LevelWarn, "WARN", msg, fields)
}
func (l *SimpleLogger) Error(msg string, fields map[string]interface{}) {
	l.emit(LevelError, "ERROR", msg, fields)
}
func (l *SimpleLogger) Debug(msg string, fields map[string]interface{}) {
	l.emit(LevelDebug, "DEBUG", msg, fields)
}

func (l *SimpleLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Info(msg, withRequestID(ctx, fields))
}
func (l *SimpleLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Warn(msg, withRequestID(ctx, fields))
}
func (l *SimpleLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Error(msg, withRequestID(ctx, fields))
}
func (l *SimpleLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Debug(msg, withRequestID(ctx, fields))
}

func (l *SimpleLogger) emit(level Level, tag, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	threshold := l.level
	component := l.component
	l.mu.Unlock()

	if level < threshold {
		return
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(tag)
	b.WriteString("] ")
	if component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	log.Println(b.String())
}

type requestIDKey struct{}

// WithRequestID attaches a request/session identifier to ctx so that
// subsequent *WithContext log calls include it automatically.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func withRequestID(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	id, ok := ctx.Value(requestIDKey{}).(string)
	if !ok || id == "" {
		return fields
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["request_id"] = id
	return out
}

var _ ComponentLogger = (*SimpleLogger)(nil)
