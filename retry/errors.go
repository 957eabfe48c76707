package retry

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrInvalidMode 存储模式无效
	ErrInvalidMode = xerrors.New("retry: invalid mode")

	// ErrConnectorNil 分布式模式缺少 Redis 连接器
	ErrConnectorNil = xerrors.New("retry: redis connector is required for distributed mode")

	// ErrKeyEmpty 幂等键为空
	ErrKeyEmpty = xerrors.New("retry: idempotency key is empty")

	// ErrOperationNil 操作函数为空
	ErrOperationNil = xerrors.New("retry: operation is nil")

	// ErrRecordFailed 该幂等键的操作此前已以终态失败，
	// 需使用新的幂等键或调用 Clear 后方可重试
	ErrRecordFailed = xerrors.New("retry: operation previously failed")

	// ErrWaitTimeout 等待 pending 记录落定超时
	ErrWaitTimeout = xerrors.New("retry: timed out waiting for pending operation")

	// ErrPendingExpired pending 记录在落定前过期（抢占方可能已崩溃）
	ErrPendingExpired = xerrors.New("retry: pending record expired before settling")

	// ErrClaimLost 落定时抢占已失效：pending 记录过期后 key 被
	// 他方重新抢占，原抢占方不得覆盖他方的记录
	ErrClaimLost = xerrors.New("retry: claim lost before settling")
)
