package clog

import (
	"log/slog"
	"time"
)

// Field 结构化日志字段，底层为 slog.Attr
type Field = slog.Attr

// ========================================
// 字段构造函数
// ========================================

// String 创建字符串类型字段
func String(key, value string) Field {
	return slog.String(key, value)
}

// Int 创建整数类型字段
func Int(key string, value int) Field {
	return slog.Int(key, value)
}

// Int64 创建 64 位整数类型字段
func Int64(key string, value int64) Field {
	return slog.Int64(key, value)
}

// Float64 创建浮点数类型字段
func Float64(key string, value float64) Field {
	return slog.Float64(key, value)
}

// Bool 创建布尔类型字段
func Bool(key string, value bool) Field {
	return slog.Bool(key, value)
}

// Duration 创建时间间隔类型字段
func Duration(key string, value time.Duration) Field {
	return slog.Duration(key, value)
}

// Time 创建时间类型字段
func Time(key string, value time.Time) Field {
	return slog.Time(key, value)
}

// Any 创建任意类型字段
func Any(key string, value any) Field {
	return slog.Any(key, value)
}

// Err 创建错误类型字段，key 固定为 "error"
func Err(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
