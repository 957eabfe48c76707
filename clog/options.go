package clog

import "io"

// Option 创建 Logger 时的可选配置
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter 指定输出目标，优先级高于 Config.Output。
// 主要用于测试中捕获日志输出。
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}
