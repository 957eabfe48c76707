package cache

import (
	"context"
	"time"
)

// Store 缓存条目的存储后端。
// 条目的生命周期语义由 Loader 负责，Store 只按 TTL 持有数据；
// TTL 到期后的清理由存储自身的淘汰机制完成（otter 的过期淘汰
// 或 Redis 的 key TTL），Loader 不做周期性扫描。
type Store interface {
	// Get 读取条目，未找到时返回 (nil, false, nil)
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set 写入条目，ttl 是条目在存储中的完整保留时长
	// （含 stale-if-error 窗口）
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete 删除条目，条目不存在时不报错
	Delete(ctx context.Context, key string) error

	// Close 释放存储资源
	Close() error
}
