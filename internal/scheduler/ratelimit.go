package scheduler

import (
	"sync"
	"time"

	"qd-market-sentry/pkg/types"
)

// MarketLimiter 同一市场的最小请求间隔限制
// 各查询协程共享的唯一可变状态就是这张时间戳表，读-判-写全程持锁，
// 需要等待时在锁内睡眠，保证同市场请求严格串行拉开间距
type MarketLimiter struct {
	mu       sync.Mutex
	lastCall map[types.Market]time.Time
	spacing  time.Duration
}

// NewMarketLimiter 创建限速器
func NewMarketLimiter(spacing time.Duration) *MarketLimiter {
	if spacing <= 0 {
		spacing = 300 * time.Millisecond
	}
	return &MarketLimiter{
		lastCall: make(map[types.Market]time.Time),
		spacing:  spacing,
	}
}

// Wait 等到该市场允许发起下一次请求
func (l *MarketLimiter) Wait(market types.Market) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastCall[market]; ok {
		if elapsed := time.Since(last); elapsed < l.spacing {
			time.Sleep(l.spacing - elapsed)
		}
	}
	l.lastCall[market] = time.Now()
}
