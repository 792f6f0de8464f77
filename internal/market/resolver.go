package market

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"qd-market-sentry/internal/datasource"
	"qd-market-sentry/pkg/types"
)

// klineEntry 解析链中的一个K线数据源
// translate 把规范符号转成该数据源的专用代码，返回空串表示不适用
type klineEntry struct {
	adapter   datasource.Adapter
	translate func(string) string
	applies   func(types.Timeframe) bool
}

// tickerEntry 解析链中的一个实时行情数据源
type tickerEntry struct {
	source    datasource.TickerSource
	translate func(string) string
}

// Resolver 单一市场的行情解析器
// 按声明顺序逐个尝试数据源，第一个返回非空结果的获胜，不跨源合并
type Resolver struct {
	market  types.Market
	klines  []klineEntry
	tickers []tickerEntry
	// 该市场是否只有日线级数据，用于给出更明确的无数据提示
	dailyOnly bool
}

// Market 所属市场
func (r *Resolver) Market() types.Market { return r.market }

// Candles 解析K线
// 无数据返回空切片并记录警告，仅对非法输入返回错误
func (r *Resolver) Candles(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	if tf.Seconds() <= 0 {
		return nil, fmt.Errorf("未知的K线周期: %s", tf)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit必须为正数: %d", limit)
	}

	for _, entry := range r.klines {
		if entry.applies != nil && !entry.applies(tf) {
			continue
		}
		providerSymbol := entry.translate(symbol)
		if providerSymbol == "" {
			continue
		}

		candles, err := entry.adapter.Klines(ctx, providerSymbol, tf, limit, beforeTime)
		if err != nil {
			// 单个数据源失败不中断解析链
			zap.L().Warn("⚠️ 数据源拉取失败，尝试下一个",
				zap.String("market", string(r.market)),
				zap.String("source", entry.adapter.Name()),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		if len(candles) == 0 {
			continue
		}

		result := datasource.Finalize(candles, beforeTime, limit)
		if len(result) == 0 {
			continue
		}
		datasource.WarnIfStale(entry.adapter.Name(), symbol, tf, result)
		return result, nil
	}

	if r.dailyOnly && tf != types.Timeframe1D && tf != types.Timeframe1W && tf != types.Timeframe1M {
		zap.L().Warn("⚠️ 该市场不支持分钟级行情，仅有日线级数据",
			zap.String("market", string(r.market)),
			zap.String("symbol", symbol),
			zap.String("timeframe", string(tf)))
	} else {
		zap.L().Warn("⚠️ 所有数据源均未返回K线",
			zap.String("market", string(r.market)),
			zap.String("symbol", symbol),
			zap.String("timeframe", string(tf)))
	}
	return []types.Candle{}, nil
}

// Ticker 解析实时行情，全部失败时返回Last为0的空结果
func (r *Resolver) Ticker(ctx context.Context, symbol string) *types.Ticker {
	for _, entry := range r.tickers {
		providerSymbol := entry.translate(symbol)
		if providerSymbol == "" {
			continue
		}
		ticker, err := entry.source.Ticker(ctx, providerSymbol)
		if err != nil {
			zap.L().Debug("实时行情源失败，尝试下一个",
				zap.String("market", string(r.market)),
				zap.String("source", entry.source.Name()),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		if ticker != nil && ticker.Last > 0 {
			return ticker
		}
	}
	return &types.Ticker{}
}

// Registry 市场解析器注册表，按市场惰性构建并复用单例
// 可选数据源（finnhub/tiingo）只有在配置了密钥时才进入解析链
type Registry struct {
	mu        sync.Mutex
	fetcher   *datasource.Fetcher
	providers types.ProvidersConfig
	resolvers map[types.Market]*Resolver
}

// NewRegistry 创建注册表
func NewRegistry(fetcher *datasource.Fetcher, providers types.ProvidersConfig) *Registry {
	return &Registry{
		fetcher:   fetcher,
		providers: providers,
		resolvers: make(map[types.Market]*Resolver),
	}
}

// Resolver 获取指定市场的解析器
func (g *Registry) Resolver(market types.Market) (*Resolver, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.resolvers[market]; ok {
		return r, nil
	}

	var r *Resolver
	switch market {
	case types.MarketAShare:
		r = g.buildAShare()
	case types.MarketHShare:
		r = g.buildHShare()
	case types.MarketUSStock:
		r = g.buildUSStock()
	case types.MarketForex:
		r = g.buildForex()
	case types.MarketCrypto:
		r = g.buildCrypto()
	case types.MarketFutures:
		r = g.buildFutures()
	default:
		return nil, fmt.Errorf("不支持的市场类型: %s", market)
	}

	g.resolvers[market] = r
	zap.L().Info("✅ 市场解析器已就绪", zap.String("market", string(market)))
	return r, nil
}

func identity(s string) string { return s }

func dailyOrWeekly(tf types.Timeframe) bool {
	return tf == types.Timeframe1D || tf == types.Timeframe1W
}

func (g *Registry) buildAShare() *Resolver {
	eastmoney := datasource.NewEastmoneyAdapter(g.fetcher)
	yahoo := datasource.NewYahooAdapter(g.fetcher)
	tencent := datasource.NewTencentAdapter(g.fetcher)

	return &Resolver{
		market: types.MarketAShare,
		klines: []klineEntry{
			// 东方财富支持绝大多数盘中周期，优先
			{adapter: eastmoney, translate: AShareSecID, applies: eastmoney.Supports},
			{adapter: yahoo, translate: AShareYahoo, applies: dailyOrWeekly},
		},
		tickers: []tickerEntry{
			{source: eastmoney, translate: AShareSecID},
			{source: tencent, translate: AShareTencent},
		},
	}
}

func (g *Registry) buildHShare() *Resolver {
	eastmoney := datasource.NewEastmoneyAdapter(g.fetcher)
	yahoo := datasource.NewYahooAdapter(g.fetcher)
	tencent := datasource.NewTencentAdapter(g.fetcher)

	return &Resolver{
		market:    types.MarketHShare,
		dailyOnly: true,
		klines: []klineEntry{
			// 腾讯财经是港股日线/周线的首选，稳定可靠
			{adapter: tencent, translate: HShareTencent, applies: dailyOrWeekly},
			// 东方财富支持所有周期，但可能有地域限制
			{adapter: eastmoney, translate: HShareSecID, applies: eastmoney.Supports},
			{adapter: yahoo, translate: HShareYahoo, applies: dailyOrWeekly},
		},
		tickers: []tickerEntry{
			{source: tencent, translate: HShareTencent},
			{source: eastmoney, translate: HShareSecID},
		},
	}
}

func (g *Registry) buildUSStock() *Resolver {
	yahoo := datasource.NewYahooAdapter(g.fetcher)

	r := &Resolver{
		market: types.MarketUSStock,
		klines: []klineEntry{
			{adapter: yahoo, translate: identity, applies: yahoo.Supports},
		},
	}
	// 配置了finnhub时实时报价优先走finnhub
	if g.providers.FinnhubKey != "" {
		finnhub := datasource.NewFinnhubAdapter(g.fetcher, g.providers.FinnhubKey)
		r.tickers = append(r.tickers, tickerEntry{source: finnhub, translate: identity})
	}
	r.tickers = append(r.tickers, tickerEntry{source: yahoo, translate: identity})
	return r
}

func (g *Registry) buildForex() *Resolver {
	r := &Resolver{market: types.MarketForex}
	if g.providers.TiingoKey == "" {
		zap.L().Warn("⚠️ 未配置tiingo API key，外汇行情不可用")
		return r
	}
	tiingo := datasource.NewTiingoAdapter(g.fetcher, g.providers.TiingoKey)
	r.klines = []klineEntry{
		{adapter: tiingo, translate: datasource.TiingoSymbol, applies: tiingo.Supports},
	}
	r.tickers = []tickerEntry{
		{source: tiingo, translate: datasource.TiingoSymbol},
	}
	return r
}

func (g *Registry) buildCrypto() *Resolver {
	binance := datasource.NewBinanceAdapter(g.fetcher)
	return &Resolver{
		market: types.MarketCrypto,
		klines: []klineEntry{
			{adapter: binance, translate: BinanceSymbol, applies: binance.Supports},
		},
		tickers: []tickerEntry{
			{source: binance, translate: BinanceSymbol},
		},
	}
}

func (g *Registry) buildFutures() *Resolver {
	yahoo := datasource.NewYahooAdapter(g.fetcher)
	binanceFutures := datasource.NewBinanceFuturesAdapter(g.fetcher)

	return &Resolver{
		market: types.MarketFutures,
		klines: []klineEntry{
			// 传统商品期货走雅虎，其余按加密永续处理
			{adapter: yahoo, translate: TraditionalFuturesYahoo, applies: yahoo.Supports},
			{adapter: binanceFutures, translate: CryptoFuturesBinance, applies: binanceFutures.Supports},
		},
		tickers: []tickerEntry{
			{source: yahoo, translate: TraditionalFuturesYahoo},
			{source: binanceFutures, translate: CryptoFuturesBinance},
		},
	}
}
