package ratelimit

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("ratelimit: connector is nil")

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidLimit 限流规则无效（Rate/Burst 非正数，或 n 永远无法被满足）
	ErrInvalidLimit = xerrors.New("ratelimit: invalid limit")

	// ErrRateLimited 限流阈值超出，供上层将 Decision 转换为错误时使用
	ErrRateLimited = xerrors.New("ratelimit: rate limit exceeded")

	// ErrScriptResult Lua 脚本返回值格式异常
	ErrScriptResult = xerrors.New("ratelimit: invalid lua script result")
)
