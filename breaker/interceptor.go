package breaker

import (
	"context"

	"github.com/ceyewan/aegis/clog"

	"google.golang.org/grpc"
)

// InterceptorOption 拦截器选项函数
type InterceptorOption func(*interceptorOptions)

type interceptorOptions struct {
	keyFunc KeyFunc
}

// WithKeyFunc 设置熔断 Key 的提取策略（默认：ServiceLevelKey）
func WithKeyFunc(fn KeyFunc) InterceptorOption {
	return func(o *interceptorOptions) {
		o.keyFunc = fn
	}
}

func applyInterceptorOptions(opts []InterceptorOption) *interceptorOptions {
	o := &interceptorOptions{
		keyFunc: ServiceLevelKey(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 为每个 gRPC 调用提供熔断保护
//
// 使用示例:
//
//	brk, _ := breaker.New(cfg, breaker.WithLogger(logger))
//	conn, _ := grpc.NewClient("localhost:9001",
//		grpc.WithUnaryInterceptor(brk.UnaryClientInterceptor(
//			breaker.WithKeyFunc(breaker.MethodLevelKey()),
//		)),
//	)
func (cb *circuitBreaker) UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	o := applyInterceptorOptions(opts)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		key := o.keyFunc(ctx, method, cc)

		cb.logger.Debug("unary call with circuit breaker",
			clog.String("key", key),
			clog.String("method", method))

		_, err := cb.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, callOpts...)
		})
		return err
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 熔断仅保护建流阶段，流建立后的收发不再计入统计
func (cb *circuitBreaker) StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor {
	o := applyInterceptorOptions(opts)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		key := o.keyFunc(ctx, method, cc)

		cb.logger.Debug("stream call with circuit breaker",
			clog.String("key", key),
			clog.String("method", method))

		result, err := cb.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return streamer(ctx, desc, cc, method, callOpts...)
		})
		if err != nil {
			return nil, err
		}
		return result.(grpc.ClientStream), nil
	}
}
