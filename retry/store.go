package retry

import (
	"context"
	"time"
)

// ========================================
// 存储接口 (Store Interface)
// ========================================

// Store 幂等记录的存储后端。
//
// 三种状态的流转完全由 Orchestrator 驱动，存储只需提供：
//  1. Claim: 原子的"不存在则创建 pending"，这是跨进程正确性的基石
//     （Redis 实现为 SETNX，内存实现为锁内检查）
//  2. Settle/Release: 校验抢占令牌后覆盖/删除记录；pending 过期后
//     key 被他方重新抢占时，原抢占方的落定必须失败而不是覆盖
//     他方的记录（Redis 实现为 Lua 脚本内比较令牌，内存实现为
//     锁内比较）
//  3. 过期清理由存储自身完成（Redis key TTL / 内存惰性过期）
type Store interface {
	// Claim 尝试为 key 创建 pending 记录。
	// key 不存在时创建并返回 (true, nil, nil)；
	// 已存在时不修改，返回 (false, 现有记录, nil)。
	Claim(ctx context.Context, key string, rec *Record, ttl time.Duration) (bool, *Record, error)

	// Get 读取记录，未找到时返回 (nil, false, nil)
	Get(ctx context.Context, key string) (*Record, bool, error)

	// Settle 校验现有记录的令牌与 token 一致后以落定记录覆盖。
	// key 不存在（pending 已过期）或令牌不匹配（已被他方重新抢占）
	// 时返回 ErrClaimLost 且不做任何修改。
	Settle(ctx context.Context, key string, token string, rec *Record, ttl time.Duration) error

	// Release 删除令牌与 token 匹配的记录，用于抢占方放弃执行。
	// key 不存在或令牌不匹配时不做任何修改，不报错。
	Release(ctx context.Context, key string, token string) error

	// Delete 无条件删除记录，记录不存在时不报错
	Delete(ctx context.Context, key string) error

	// Close 释放存储资源
	Close() error
}
