package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qd-market-sentry/pkg/types"
)

// fakeAdapter 可编程的K线数据源
type fakeAdapter struct {
	name       string
	candles    []types.Candle
	err        error
	calls      int
	lastBefore int64
}

func (f *fakeAdapter) Name() string                     { return f.name }
func (f *fakeAdapter) Supports(tf types.Timeframe) bool { return true }
func (f *fakeAdapter) Klines(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	f.calls++
	f.lastBefore = beforeTime
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

// fakeTicker 可编程的实时行情数据源
type fakeTicker struct {
	name   string
	ticker *types.Ticker
	err    error
}

func (f *fakeTicker) Name() string { return f.name }
func (f *fakeTicker) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ticker, nil
}

func freshCandles(n int) []types.Candle {
	now := time.Now().Unix()
	out := make([]types.Candle, 0, n)
	for i := n - 1; i >= 0; i-- {
		t := now - int64(i)*60
		out = append(out, types.Candle{Time: t, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1})
	}
	return out
}

func TestCandlesFirstNonEmptyWins(t *testing.T) {
	primary := &fakeAdapter{name: "primary", candles: freshCandles(3)}
	backup := &fakeAdapter{name: "backup", candles: freshCandles(5)}

	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{
			{adapter: primary, translate: identity},
			{adapter: backup, translate: identity},
		},
	}

	got, err := r.Candles(context.Background(), "BTCUSDT", types.Timeframe1m, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls, "首个数据源已有结果，后备不应被调用")
}

func TestCandlesFallbackOnError(t *testing.T) {
	primary := &fakeAdapter{name: "primary", err: errors.New("upstream down")}
	backup := &fakeAdapter{name: "backup", candles: freshCandles(2)}

	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{
			{adapter: primary, translate: identity},
			{adapter: backup, translate: identity},
		},
	}

	got, err := r.Candles(context.Background(), "BTCUSDT", types.Timeframe1m, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestCandlesSkipsInapplicableTranslation(t *testing.T) {
	skipped := &fakeAdapter{name: "skipped", candles: freshCandles(5)}
	used := &fakeAdapter{name: "used", candles: freshCandles(2)}

	r := &Resolver{
		market: types.MarketFutures,
		klines: []klineEntry{
			// 符号转换返回空串表示该数据源不适用
			{adapter: skipped, translate: func(string) string { return "" }},
			{adapter: used, translate: identity},
		},
	}

	got, err := r.Candles(context.Background(), "BTC/USDT:USDT", types.Timeframe1m, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, skipped.calls)
}

func TestCandlesAllEmpty(t *testing.T) {
	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{
			{adapter: &fakeAdapter{name: "empty"}, translate: identity},
		},
	}

	got, err := r.Candles(context.Background(), "BTCUSDT", types.Timeframe1m, 10, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCandlesInvalidInput(t *testing.T) {
	r := &Resolver{market: types.MarketCrypto}

	_, err := r.Candles(context.Background(), "BTCUSDT", types.Timeframe("3h"), 10, 0)
	assert.Error(t, err)

	_, err = r.Candles(context.Background(), "BTCUSDT", types.Timeframe1m, 0, 0)
	assert.Error(t, err)
}

func TestCandlesAppliesLimit(t *testing.T) {
	adapter := &fakeAdapter{name: "big", candles: freshCandles(10)}
	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{{adapter: adapter, translate: identity}},
	}

	got, err := r.Candles(context.Background(), "BTCUSDT", types.Timeframe1m, 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// 保留最近的3根
	assert.Equal(t, adapter.candles[9].Time, got[2].Time)
}

func TestCandlesForwardsBeforeTime(t *testing.T) {
	old := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC).Unix()
	adapter := &fakeAdapter{name: "history", candles: []types.Candle{
		{Time: old - 120, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 1},
		{Time: old - 60, Open: 1.5, High: 2, Low: 1, Close: 1.8, Volume: 1},
	}}
	r := &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{{adapter: adapter, translate: identity}},
	}

	got, err := r.Candles(context.Background(), "BTCUSDT", types.Timeframe1m, 10, old)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	// 历史截止时间必须传到数据源，仅靠事后过滤会漏掉默认窗口之外的数据
	assert.Equal(t, old, adapter.lastBefore)
}

func TestTickerFirstPositiveWins(t *testing.T) {
	r := &Resolver{
		market: types.MarketUSStock,
		tickers: []tickerEntry{
			{source: &fakeTicker{name: "down", err: errors.New("down")}, translate: identity},
			{source: &fakeTicker{name: "zero", ticker: &types.Ticker{}}, translate: identity},
			{source: &fakeTicker{name: "good", ticker: &types.Ticker{Last: 101.5}}, translate: identity},
		},
	}

	got := r.Ticker(context.Background(), "AAPL")
	require.NotNil(t, got)
	assert.Equal(t, 101.5, got.Last)
}

func TestTickerAllFailed(t *testing.T) {
	r := &Resolver{
		market: types.MarketUSStock,
		tickers: []tickerEntry{
			{source: &fakeTicker{name: "down", err: errors.New("down")}, translate: identity},
		},
	}

	got := r.Ticker(context.Background(), "AAPL")
	require.NotNil(t, got)
	assert.Zero(t, got.Last)
}

func TestRegistryCachesResolvers(t *testing.T) {
	g := NewRegistry(nil, types.ProvidersConfig{})

	r1, err := g.Resolver(types.MarketCrypto)
	require.NoError(t, err)
	r2, err := g.Resolver(types.MarketCrypto)
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	_, err = g.Resolver(types.Market("Bonds"))
	assert.Error(t, err)
}

func TestRegistryForexWithoutKey(t *testing.T) {
	g := NewRegistry(nil, types.ProvidersConfig{})

	r, err := g.Resolver(types.MarketForex)
	require.NoError(t, err)
	assert.Empty(t, r.klines)
	assert.Empty(t, r.tickers)
}
