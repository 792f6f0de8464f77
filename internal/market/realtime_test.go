package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qd-market-sentry/internal/cache"
	"qd-market-sentry/pkg/types"
)

// newTestService 用预置的解析器构造价格服务，缓存走纯内存模式
func newTestService(t *testing.T, r *Resolver) *PriceService {
	t.Helper()
	registry := NewRegistry(nil, types.ProvidersConfig{})
	registry.resolvers[r.market] = r
	return NewPriceService(registry, cache.NewPriceCache(types.RedisConfig{}, types.CacheConfig{}))
}

func TestRealtimePriceFromTicker(t *testing.T) {
	r := &Resolver{
		market: types.MarketUSStock,
		tickers: []tickerEntry{
			{source: &fakeTicker{name: "good", ticker: &types.Ticker{
				Last: 150.5, Change: 1.5, ChangePercent: 1.0, PreviousClose: 149.0,
			}}, translate: identity},
		},
	}
	svc := newTestService(t, r)

	got, err := svc.RealtimePrice(context.Background(), types.MarketUSStock, "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, 150.5, got.Price)
	assert.Equal(t, "ticker", got.Source)
	assert.NotZero(t, got.UpdateTime)
}

func TestRealtimePriceFallsBackToMinuteKlines(t *testing.T) {
	now := time.Now().Unix()
	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{
			{adapter: &fakeAdapter{name: "klines", candles: []types.Candle{
				{Time: now - 60, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1},
				{Time: now, Open: 100, High: 103, Low: 100, Close: 102, Volume: 1},
			}}, translate: identity},
		},
	}
	svc := newTestService(t, r)

	got, err := svc.RealtimePrice(context.Background(), types.MarketCrypto, "BTCUSDT", false)
	require.NoError(t, err)
	assert.Equal(t, "kline_1m", got.Source)
	assert.Equal(t, 102.0, got.Price)
	assert.Equal(t, 100.0, got.PreviousClose)
	assert.Equal(t, 2.0, got.Change)
	assert.Equal(t, 2.0, got.ChangePercent)
}

func TestRealtimePriceSingleCandleUsesOpen(t *testing.T) {
	now := time.Now().Unix()
	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{
			{adapter: &fakeAdapter{name: "one", candles: []types.Candle{
				{Time: now, Open: 200, High: 210, Low: 195, Close: 205, Volume: 1},
			}}, translate: identity},
		},
	}
	svc := newTestService(t, r)

	got, err := svc.RealtimePrice(context.Background(), types.MarketCrypto, "ETHUSDT", false)
	require.NoError(t, err)
	assert.Equal(t, 205.0, got.Price)
	assert.Equal(t, 200.0, got.PreviousClose)
}

func TestRealtimePriceAllFailedReturnsUnknown(t *testing.T) {
	svc := newTestService(t, &Resolver{market: types.MarketCrypto})

	got, err := svc.RealtimePrice(context.Background(), types.MarketCrypto, "NOPEUSDT", false)
	require.NoError(t, err, "全部失败不是错误")
	assert.True(t, got.IsZero())
	assert.Equal(t, "unknown", got.Source)
}

func TestRealtimePriceCached(t *testing.T) {
	ticker := &fakeTicker{name: "counted", ticker: &types.Ticker{Last: 50}}
	calls := 0

	r := &Resolver{
		market: types.MarketUSStock,
		tickers: []tickerEntry{
			{source: ticker, translate: func(s string) string {
				calls++
				return s
			}},
		},
	}
	svc := newTestService(t, r)
	ctx := context.Background()

	_, err := svc.RealtimePrice(ctx, types.MarketUSStock, "MSFT", false)
	require.NoError(t, err)
	_, err = svc.RealtimePrice(ctx, types.MarketUSStock, "MSFT", false)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "第二次查询应命中缓存")

	// 强制刷新绕过缓存
	_, err = svc.RealtimePrice(ctx, types.MarketUSStock, "MSFT", true)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestKlinesCached(t *testing.T) {
	adapter := &fakeAdapter{name: "counted", candles: freshCandles(3)}
	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{{adapter: adapter, translate: identity}},
	}
	svc := newTestService(t, r)
	ctx := context.Background()

	_, err := svc.Klines(ctx, types.MarketCrypto, "BTCUSDT", types.Timeframe1H, 3, 0, false)
	require.NoError(t, err)
	_, err = svc.Klines(ctx, types.MarketCrypto, "BTCUSDT", types.Timeframe1H, 3, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.calls)

	// 历史查询不走缓存
	beforeTime := time.Now().Unix()
	_, err = svc.Klines(ctx, types.MarketCrypto, "BTCUSDT", types.Timeframe1H, 3, beforeTime, false)
	require.NoError(t, err)
	_, err = svc.Klines(ctx, types.MarketCrypto, "BTCUSDT", types.Timeframe1H, 3, beforeTime, false)
	require.NoError(t, err)
	assert.Equal(t, 3, adapter.calls)
}
