package retry

import (
	"math/rand/v2"
	"time"
)

// backoffDelay 计算第 attempt 次尝试失败后的退避时长，
// 指数增长封顶于 BackoffMax，并附加均匀抖动避免重试风暴。
// attempt 从 1 开始计数。
func backoffDelay(attempt int, p *Policy) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// 限制指数防止溢出
	if attempt > 30 {
		attempt = 30
	}

	backoff := float64(p.BackoffBase)
	for i := 1; i < attempt; i++ {
		backoff *= p.Multiplier
		if backoff >= float64(p.BackoffMax) {
			backoff = float64(p.BackoffMax)
			break
		}
	}

	delay := time.Duration(backoff)
	if delay > p.BackoffMax || delay < 0 {
		delay = p.BackoffMax
	}

	if p.Jitter > 0 {
		jitterAmount := time.Duration(float64(delay) * p.Jitter * rand.Float64())
		if delay+jitterAmount > p.BackoffMax {
			delay = p.BackoffMax
		} else {
			delay += jitterAmount
		}
	}
	return delay
}
