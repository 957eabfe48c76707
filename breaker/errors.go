package breaker

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("breaker: invalid config")

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: key is empty")

	// ErrOpenState 熔断器处于打开状态（或半开探测名额已满）
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")

	// ErrTimeout 单次调用超时
	ErrTimeout = xerrors.New("breaker: call timed out")

	// ErrBreakerNotFound 指定键的熔断器尚未创建
	ErrBreakerNotFound = xerrors.New("breaker: breaker not found")
)
