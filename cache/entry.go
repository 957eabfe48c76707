package cache

import "time"

// Entry 缓存条目，记录值与完整的生命周期元数据。
// 时间戳满足 InsertedAt <= FreshUntil <= StaleUntil。
type Entry struct {
	// Value 缓存的业务值
	Value any `msgpack:"v"`

	// InsertedAt 写入时间
	InsertedAt time.Time `msgpack:"ia"`

	// FreshUntil 新鲜期截止时间，此前的读取直接命中
	FreshUntil time.Time `msgpack:"fu"`

	// StaleUntil 陈旧期截止时间，FreshUntil 之后、此前的读取
	// 返回旧值并触发后台刷新
	StaleUntil time.Time `msgpack:"su"`

	// Generation 写入时的世代戳，Invalidate 会递增世代，
	// 旧世代的回源结果不会回填
	Generation int64 `msgpack:"g"`
}

// fresh 报告条目在 now 时刻是否处于新鲜期
func (e *Entry) fresh(now time.Time) bool {
	return now.Before(e.FreshUntil)
}

// stale 报告条目在 now 时刻是否处于陈旧期
func (e *Entry) stale(now time.Time) bool {
	return !now.Before(e.FreshUntil) && now.Before(e.StaleUntil)
}

// usableOnError 报告条目在 now 时刻是否仍可用于故障降级
func (e *Entry) usableOnError(now time.Time, staleIfError time.Duration) bool {
	return now.Before(e.StaleUntil.Add(staleIfError))
}
