package clog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 日志级别
type Level = slog.Level

// 支持的日志级别
const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
	// FatalLevel 记录后调用 os.Exit(1)
	FatalLevel = slog.LevelError + 4
)

// ParseLevel 将字符串解析为日志级别
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("clog: unknown level %q", s)
	}
}
