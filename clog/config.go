package clog

import "fmt"

// Config 日志配置
type Config struct {
	// Level 日志级别：debug、info、warn、error、fatal
	Level string `json:"level" yaml:"level"`
	// Format 输出格式：json 或 console
	Format string `json:"format" yaml:"format"`
	// Output 输出目标：stdout、stderr 或文件路径
	Output string `json:"output" yaml:"output"`
	// AddSource 是否记录调用位置
	AddSource bool `json:"add_source" yaml:"add_source"`
	// Namespace 根命名空间，组件通过 WithNamespace 派生子空间
	Namespace string `json:"namespace" yaml:"namespace"`
}

// NewDevDefaultConfig 返回开发环境默认配置：debug 级别、console 格式、带调用位置
func NewDevDefaultConfig(namespace string) *Config {
	return &Config{
		Level:     "debug",
		Format:    "console",
		Output:    "stdout",
		AddSource: true,
		Namespace: namespace,
	}
}

// NewProdDefaultConfig 返回生产环境默认配置：info 级别、json 格式
func NewProdDefaultConfig(namespace string) *Config {
	return &Config{
		Level:     "info",
		Format:    "json",
		Output:    "stdout",
		Namespace: namespace,
	}
}

func (c *Config) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("clog: unknown format %q", c.Format)
	}
	return nil
}
