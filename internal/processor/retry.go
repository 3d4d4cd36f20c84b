package processor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// RetryPolicy LLM调用边界的统一重试策略
// 解析失败和限流做指数退避重试；超时只放宽时限重试一次；
// 其他错误一律不重试
type RetryPolicy struct {
	maxAttempts     int
	initialBackoff  time.Duration
	callTimeout     time.Duration
	extendedTimeout time.Duration
}

// NewRetryPolicy 按配置创建重试策略
func NewRetryPolicy(cfg config.OracleRetryConfig) *RetryPolicy {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxOracleAttempts
	}
	return &RetryPolicy{
		maxAttempts:     maxAttempts,
		initialBackoff:  config.GetDuration(cfg.InitialBackoff, constants.DefaultInitialBackoff),
		callTimeout:     config.GetDuration(cfg.CallTimeout, 30*time.Second),
		extendedTimeout: config.GetDuration(cfg.ExtendedTimeout, 90*time.Second),
	}
}

// Do 执行op并按策略重试
// op收到的上下文带有单次调用超时
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = p.callWithTimeout(ctx, p.callTimeout, op)
		if err == nil {
			return nil
		}

		if errors.Is(err, types.ErrOracleTimeout) {
			// 超时只放宽时限重试一次，不进入退避循环
			return p.callWithTimeout(ctx, p.extendedTimeout, op)
		}
		if !errors.Is(err, types.ErrOracleParse) && !errors.Is(err, types.ErrOracleThrottled) {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *RetryPolicy) callWithTimeout(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(callCtx)
}
