package market

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"qd-market-sentry/internal/cache"
	"qd-market-sentry/pkg/types"
)

// PriceService K线与实时价格的统一入口，负责缓存读写
type PriceService struct {
	registry *Registry
	cache    *cache.PriceCache
}

// NewPriceService 创建价格服务
func NewPriceService(registry *Registry, priceCache *cache.PriceCache) *PriceService {
	return &PriceService{
		registry: registry,
		cache:    priceCache,
	}
}

// Klines 查询K线，结果按周期TTL缓存
// 指定beforeTime的历史查询不走缓存：键空间无界且复用率低
func (s *PriceService) Klines(ctx context.Context, mkt types.Market, symbol string, tf types.Timeframe, limit int, beforeTime int64, forceRefresh bool) ([]types.Candle, error) {
	resolver, err := s.registry.Resolver(mkt)
	if err != nil {
		return nil, err
	}

	cacheable := beforeTime == 0
	key := cache.KlineKey(mkt, symbol, tf, limit)

	if cacheable && !forceRefresh {
		var cached []types.Candle
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	candles, err := resolver.Candles(ctx, symbol, tf, limit, beforeTime)
	if err != nil {
		return nil, err
	}

	if cacheable && len(candles) > 0 {
		s.cache.Set(ctx, key, candles, s.cache.KlineTTL(tf))
	}
	return candles, nil
}

// RealtimePrice 实时价格解析
// 阶梯依次尝试：ticker → 最近两根1m → 最近两根1D，哪级成功就按对应TTL缓存
// 三级全部失败返回Source为unknown的零值结果，这不是错误
func (s *PriceService) RealtimePrice(ctx context.Context, mkt types.Market, symbol string, forceRefresh bool) (*types.RealtimePrice, error) {
	resolver, err := s.registry.Resolver(mkt)
	if err != nil {
		return nil, err
	}

	key := cache.RealtimeKey(mkt, symbol)
	if !forceRefresh {
		var cached types.RealtimePrice
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	// 第一级：实时行情
	if ticker := resolver.Ticker(ctx, symbol); ticker.Last > 0 {
		result := &types.RealtimePrice{
			Price:         ticker.Last,
			Change:        ticker.Change,
			ChangePercent: ticker.ChangePercent,
			High:          ticker.High,
			Low:           ticker.Low,
			Open:          ticker.Open,
			PreviousClose: ticker.PreviousClose,
			Source:        "ticker",
			UpdateTime:    time.Now().Unix(),
		}
		s.cache.Set(ctx, key, result, s.cache.RealtimeTTL())
		return result, nil
	}

	// 第二级：1分钟K线
	if result := s.priceFromKlines(ctx, resolver, symbol, types.Timeframe1m, "kline_1m"); result != nil {
		s.cache.Set(ctx, key, result, s.cache.RealtimeTTL())
		return result, nil
	}

	// 第三级：日线，常用于非交易时段
	if result := s.priceFromKlines(ctx, resolver, symbol, types.Timeframe1D, "kline_1d"); result != nil {
		s.cache.Set(ctx, key, result, s.cache.DailyTTL())
		return result, nil
	}

	zap.L().Warn("⚠️ 实时价格解析失败，返回空结果",
		zap.String("market", string(mkt)),
		zap.String("symbol", symbol))
	return &types.RealtimePrice{Source: "unknown", UpdateTime: time.Now().Unix()}, nil
}

// priceFromKlines 用最近两根K线推导实时价格
// 只有一根时昨收退化为这根K线的开盘价
func (s *PriceService) priceFromKlines(ctx context.Context, resolver *Resolver, symbol string, tf types.Timeframe, source string) *types.RealtimePrice {
	candles, err := resolver.Candles(ctx, symbol, tf, 2, 0)
	if err != nil || len(candles) == 0 {
		return nil
	}

	latest := candles[len(candles)-1]
	if latest.Close <= 0 {
		return nil
	}

	prevClose := latest.Open
	if len(candles) > 1 {
		prevClose = candles[len(candles)-2].Close
	}

	var change, changePercent float64
	if prevClose > 0 {
		change = math.Round((latest.Close-prevClose)*10000) / 10000
		changePercent = math.Round((latest.Close-prevClose)/prevClose*100*100) / 100
	}

	return &types.RealtimePrice{
		Price:         latest.Close,
		Change:        change,
		ChangePercent: changePercent,
		High:          latest.High,
		Low:           latest.Low,
		Open:          latest.Open,
		PreviousClose: prevClose,
		Source:        source,
		UpdateTime:    time.Now().Unix(),
	}
}
