package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
)

// New 根据配置创建 zerolog logger，支持 json 与 console 两种输出。
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit sink, used by tests and the tester tool.
func NewWithWriter(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Component 返回带 component 字段的子 logger。
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

type ctxKey string

const ctxSessID ctxKey = "session_id"

// WithSessionID 把会话 ID 放入 context，供下游日志使用。
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxSessID, id)
}

// With attaches request-scoped fields found in ctx.
func With(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if v, ok := ctx.Value(ctxSessID).(string); ok && v != "" {
		return base.With().Str("session_id", v).Logger()
	}
	return base
}

// Preview shortens user text for log lines.
func Preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
