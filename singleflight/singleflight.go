// Package singleflight 提供请求合并能力：同一个 key 的并发调用
// 只会真正执行一次，其余调用者等待并共享同一个结果。
//
// 与 golang.org/x/sync/singleflight 的区别：
//   - Do 接受 context，任何调用者（包括发起者）在 context 取消时
//     都只是脱离等待；fn 运行在与调用者取消解耦的 context 上，
//     调用继续完成并把结果交付给其余等待者
//   - 结果交付与记录清理在同一临界区完成，不存在"两个生产者"
//     或"加入已结束调用"的窗口
//
// 基本使用：
//
//	var g singleflight.Group
//
//	val, shared, err := g.Do(ctx, "user:123", func(ctx context.Context) (any, error) {
//	    return fetchUser(ctx, "123")
//	})
package singleflight

import (
	"context"
	"sync"
)

// call 代表一次进行中或已完成的调用
type call struct {
	done chan struct{} // 结果就绪后关闭
	val  any
	err  error
	dups int // 共享本次调用的等待者数量
}

// Group 管理一组进行中的调用，Group 的零值可直接使用
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

// New 创建一个新的 Group
func New() *Group {
	return &Group{}
}

// Do 执行 fn 并返回结果，保证同一个 key 同一时刻只有一次执行。
//
// 第一个调用者发起执行，其间到达的相同 key 调用者等待执行完成
// 并共享相同的结果，shared 为 true。
//
// 任何调用者（包括发起者）的 ctx 被取消时立即返回 ctx.Err() 并
// 脱离等待；fn 运行在与调用者取消解耦的 context 上（保留 value，
// 丢弃取消信号），调用继续完成并交付给其余等待者。
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (val any, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call)
	}

	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			// 等待者脱离，调用继续为其他等待者执行
			return nil, false, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(c, key, context.WithoutCancel(ctx), fn)

	select {
	case <-c.done:
		g.mu.Lock()
		shared = c.dups > 0
		g.mu.Unlock()
		return c.val, shared, c.err
	case <-ctx.Done():
		// 发起者脱离只是放弃自己的兴趣，调用继续为等待者完成
		return nil, false, ctx.Err()
	}
}

// run 执行 fn 并落定结果。清理记录与交付结果在同一临界区完成：
// 之后到达的调用者会开启新的执行，而不会加入已结束的调用
func (g *Group) run(c *call, key string, ctx context.Context, fn func(ctx context.Context) (any, error)) {
	c.val, c.err = fn(ctx)

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	close(c.done)
	g.mu.Unlock()
}

// TryDo 仅在没有同 key 调用进行中时执行 fn，否则立即返回 ErrInProgress。
// 适合"触发一次后台刷新"这类不需要等待的场景。
func (g *Group) TryDo(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (val any, executed bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call)
	}

	if _, ok := g.m[key]; ok {
		g.mu.Unlock()
		return nil, false, ErrInProgress
	}

	c := &call{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn(ctx)

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	close(c.done)
	g.mu.Unlock()

	return c.val, true, c.err
}

// Forget 丢弃 key 当前的调用记录，下一次 Do 会开启新的执行。
// 进行中的调用不受影响，其结果仍会交付给已在等待的调用者。
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}
