package datasource

import (
	"context"

	"qd-market-sentry/pkg/types"
)

// Adapter 单一上游数据源的K线适配器
// 传入的symbol已经是该数据源的专用代码，市场层负责转换
type Adapter interface {
	Name() string
	// Supports 该数据源是否原生支持此周期
	Supports(tf types.Timeframe) bool
	// Klines 拉取一批K线，无数据返回空切片而非错误
	// beforeTime大于0时取数窗口锚定在该时间之前，为0时取最新数据
	Klines(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error)
}

// TickerSource 实时行情适配器
type TickerSource interface {
	Name() string
	Ticker(ctx context.Context, symbol string) (*types.Ticker, error)
}

// 上游接口统一使用浏览器UA，部分站点会拒绝默认UA
const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
