package clog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// slogLogger 基于 slog 的 Logger 实现
type slogLogger struct {
	logger    *slog.Logger
	level     *slog.LevelVar
	namespace string
	closer    io.Closer
}

func newLogger(config *Config, opt *options) (Logger, error) {
	lvl, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(lvl)

	var w io.Writer
	var closer io.Closer
	switch {
	case opt.writer != nil:
		w = opt.writer
	case config.Output == "stdout":
		w = os.Stdout
	case config.Output == "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("clog: open output file: %w", err)
		}
		w = f
		closer = f
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	l := &slogLogger{
		logger:    slog.New(handler),
		level:     levelVar,
		namespace: config.Namespace,
		closer:    closer,
	}
	if config.Namespace != "" {
		l.logger = l.logger.With(slog.String("namespace", config.Namespace))
	}
	return l, nil
}

// ========================================
// 无 Context 版本
// ========================================

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.logger.LogAttrs(context.Background(), DebugLevel, msg, fields...)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.logger.LogAttrs(context.Background(), InfoLevel, msg, fields...)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.logger.LogAttrs(context.Background(), WarnLevel, msg, fields...)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.logger.LogAttrs(context.Background(), ErrorLevel, msg, fields...)
}

func (l *slogLogger) Fatal(msg string, fields ...Field) {
	l.logger.LogAttrs(context.Background(), FatalLevel, msg, fields...)
	l.Flush()
	os.Exit(1)
}

// ========================================
// Context 版本
// ========================================

func (l *slogLogger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.logger.LogAttrs(ctx, DebugLevel, msg, fields...)
}

func (l *slogLogger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.logger.LogAttrs(ctx, InfoLevel, msg, fields...)
}

func (l *slogLogger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.logger.LogAttrs(ctx, WarnLevel, msg, fields...)
}

func (l *slogLogger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.logger.LogAttrs(ctx, ErrorLevel, msg, fields...)
}

func (l *slogLogger) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.logger.LogAttrs(ctx, FatalLevel, msg, fields...)
	l.Flush()
	os.Exit(1)
}

// ========================================
// 派生与控制
// ========================================

func (l *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	clone := *l
	clone.logger = l.logger.With(args...)
	return &clone
}

func (l *slogLogger) WithNamespace(parts ...string) Logger {
	if len(parts) == 0 {
		return l
	}
	ns := strings.Join(parts, ".")
	if l.namespace != "" {
		ns = l.namespace + "." + ns
	}
	clone := *l
	clone.namespace = ns
	clone.logger = l.logger.With(slog.String("namespace", ns))
	return &clone
}

func (l *slogLogger) SetLevel(level Level) error {
	l.level.Set(level)
	return nil
}

func (l *slogLogger) Flush() {
	if f, ok := l.closer.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}
