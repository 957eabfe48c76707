package metrics

import "fmt"

// Config 指标配置
type Config struct {
	// Namespace 指标名前缀，最终指标名为 "<namespace>.<name>"
	Namespace string `json:"namespace" yaml:"namespace"`
}

// NewDevDefaultConfig 返回开发环境默认配置
func NewDevDefaultConfig(namespace string) *Config {
	return &Config{Namespace: namespace}
}

func (c *Config) validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("metrics: namespace is required")
	}
	return nil
}
