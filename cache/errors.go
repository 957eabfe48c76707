package cache

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrInvalidMode 缓存模式无效
	ErrInvalidMode = xerrors.New("cache: invalid mode")

	// ErrConnectorNil 分布式模式缺少 Redis 连接器
	ErrConnectorNil = xerrors.New("cache: redis connector is required for distributed mode")

	// ErrKeyEmpty 缓存键为空
	ErrKeyEmpty = xerrors.New("cache: key is empty")

	// ErrFetchNil 回源函数为空
	ErrFetchNil = xerrors.New("cache: fetch function is nil")

	// ErrRateLimited 回源被限流拒绝
	ErrRateLimited = xerrors.New("cache: fetch rate limited")
)
