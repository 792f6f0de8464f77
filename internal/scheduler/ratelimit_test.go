package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"qd-market-sentry/pkg/types"
)

func TestMarketLimiterSpacing(t *testing.T) {
	limiter := NewMarketLimiter(50 * time.Millisecond)

	start := time.Now()
	limiter.Wait(types.MarketCrypto)
	limiter.Wait(types.MarketCrypto)
	limiter.Wait(types.MarketCrypto)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond, "三次同市场请求至少间隔两个周期")
}

func TestMarketLimiterIndependentMarkets(t *testing.T) {
	limiter := NewMarketLimiter(200 * time.Millisecond)

	start := time.Now()
	limiter.Wait(types.MarketCrypto)
	limiter.Wait(types.MarketUSStock)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "不同市场互不影响")
}

func TestMarketLimiterConcurrent(t *testing.T) {
	limiter := NewMarketLimiter(20 * time.Millisecond)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Wait(types.MarketAShare)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestMarketLimiterDefaultSpacing(t *testing.T) {
	limiter := NewMarketLimiter(0)
	assert.Equal(t, 300*time.Millisecond, limiter.spacing)
}
