package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	gjson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"qd-market-sentry/pkg/types"
)

// TiingoAdapter Tiingo外汇行情适配器
// 免费账户支持 5min/15min/30min/1hour/4hour/1day，
// 1min需要付费订阅，1W/1M由日线聚合得到
type TiingoAdapter struct {
	fetcher *Fetcher
	apiKey  string
	baseURL string
}

// NewTiingoAdapter 创建Tiingo适配器
func NewTiingoAdapter(fetcher *Fetcher, apiKey string) *TiingoAdapter {
	return &TiingoAdapter{
		fetcher: fetcher,
		apiKey:  apiKey,
		baseURL: "https://api.tiingo.com/tiingo",
	}
}

func (a *TiingoAdapter) Name() string { return "tiingo" }

var tiingoFreqs = map[types.Timeframe]string{
	types.Timeframe1m:  "1min",
	types.Timeframe5m:  "5min",
	types.Timeframe15m: "15min",
	types.Timeframe30m: "30min",
	types.Timeframe1H:  "1hour",
	types.Timeframe4H:  "4hour",
	types.Timeframe1D:  "1day",
}

// 常用货币对映射，未收录的统一小写后直传
var tiingoSymbols = map[string]string{
	"XAUUSD": "xauusd",
	"XAGUSD": "xagusd",
	"EURUSD": "eurusd",
	"GBPUSD": "gbpusd",
	"USDJPY": "usdjpy",
	"AUDUSD": "audusd",
	"USDCAD": "usdcad",
	"USDCHF": "usdchf",
	"NZDUSD": "nzdusd",
}

// TiingoSymbol 规范符号转Tiingo代码
func TiingoSymbol(symbol string) string {
	if s, ok := tiingoSymbols[symbol]; ok {
		return s
	}
	return strings.ToLower(symbol)
}

func (a *TiingoAdapter) Supports(tf types.Timeframe) bool {
	if tf == types.Timeframe1W || tf == types.Timeframe1M {
		return true // 由日线聚合
	}
	_, ok := tiingoFreqs[tf]
	return ok
}

type tiingoPriceRow struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// getWithRateLimit Tiingo遇到429时退避重试
func (a *TiingoAdapter) getWithRateLimit(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	for attempt := 0; attempt < 3; attempt++ {
		status, body, err := a.fetcher.GetBytes(ctx, url, params, nil)
		if err != nil {
			return nil, err
		}
		switch {
		case status == 429:
			wait := time.Duration(2*(attempt+1)) * time.Second
			zap.L().Warn("⚠️ Tiingo触发限流，等待后重试",
				zap.Duration("wait", wait),
				zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		case status == 403:
			return nil, fmt.Errorf("tiingo鉴权失败(403)，请检查API key权限")
		case status != 200:
			return nil, fmt.Errorf("tiingo返回状态码 %d", status)
		default:
			return body, nil
		}
	}
	return nil, fmt.Errorf("tiingo限流未恢复，放弃请求")
}

// Klines 拉取外汇K线，1W/1M先取日线再按日历聚合
// 外汇数据无成交量，volume恒为0
func (a *TiingoAdapter) Klines(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("未配置tiingo API key，无法获取外汇数据")
	}

	freq, ok := tiingoFreqs[tf]
	if !ok && tf != types.Timeframe1W && tf != types.Timeframe1M {
		return []types.Candle{}, nil
	}

	originalLimit := limit
	tfSeconds := tf.Seconds()
	aggregateUnit := CalendarUnit(-1)
	switch tf {
	case types.Timeframe1W:
		// 周线最多100周，需要的日线按7天一周估算
		freq = "1day"
		tfSeconds = 86400
		aggregateUnit = CalendarWeek
		if originalLimit > 100 {
			originalLimit = 100
		}
		limit = originalLimit * 7
	case types.Timeframe1M:
		// 月线最多36个月
		freq = "1day"
		tfSeconds = 86400
		aggregateUnit = CalendarMonth
		if originalLimit > 36 {
			originalLimit = 36
		}
		limit = originalLimit * 30
	}

	// 周末不开盘，时间窗口多取一半缓冲，整体不超过3年
	end := time.Now()
	if beforeTime > 0 {
		end = time.Unix(beforeTime, 0)
	}
	start := end.Add(-time.Duration(float64(limit)*float64(tfSeconds)*1.5) * time.Second)
	if end.Sub(start) > 3*365*24*time.Hour {
		start = end.AddDate(-3, 0, 0)
	}

	params := map[string]string{
		"startDate":    start.Format("2006-01-02"),
		"endDate":      end.Format("2006-01-02"),
		"resampleFreq": freq,
		"token":        a.apiKey,
		"format":       "json",
	}

	body, err := a.getWithRateLimit(ctx, fmt.Sprintf("%s/fx/%s/prices", a.baseURL, symbol), params)
	if err != nil {
		return nil, err
	}

	var rows []tiingoPriceRow
	if err := gjson.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("解析tiingo响应失败: %w", err)
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		t, err := time.Parse(time.RFC3339, row.Date)
		if err != nil {
			continue
		}
		candles = append(candles, NewCandle(t.Unix(), row.Open, row.High, row.Low, row.Close, 0))
	}

	if aggregateUnit >= 0 {
		candles = AggregateCalendar(Finalize(candles, 0, 0), aggregateUnit)
	}
	if len(candles) > originalLimit {
		candles = candles[len(candles)-originalLimit:]
	}
	return candles, nil
}

type tiingoTopRow struct {
	BidPrice float64 `json:"bidPrice"`
	AskPrice float64 `json:"askPrice"`
	MidPrice float64 `json:"midPrice"`
}

// Ticker 实时报价取盘口中间价，昨收由最近日线补齐
func (a *TiingoAdapter) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("未配置tiingo API key，无法获取外汇报价")
	}

	body, err := a.getWithRateLimit(ctx, a.baseURL+"/fx/top", map[string]string{
		"tickers": symbol,
		"token":   a.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var rows []tiingoTopRow
	if err := gjson.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("解析tiingo盘口失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tiingo未返回 %s 的盘口", symbol)
	}

	top := rows[0]
	mid := top.MidPrice
	if mid == 0 && top.BidPrice > 0 && top.AskPrice > 0 {
		mid = (top.BidPrice + top.AskPrice) / 2
	}
	last := mid
	if last == 0 {
		last = top.BidPrice
	}
	if last == 0 {
		last = top.AskPrice
	}
	if last <= 0 {
		return nil, fmt.Errorf("tiingo未返回 %s 的有效价格", symbol)
	}

	ticker := &types.Ticker{
		Last: last,
		Bid:  top.BidPrice,
		Ask:  top.AskPrice,
	}

	// 昨收取失败不影响报价本身
	if daily, err := a.Klines(ctx, symbol, types.Timeframe1D, 2, 0); err == nil && len(daily) > 0 {
		prev := daily[len(daily)-1].Close
		if len(daily) > 1 {
			prev = daily[len(daily)-2].Close
		}
		if prev > 0 {
			ticker.PreviousClose = prev
			ticker.Change = round4(last - prev)
			ticker.ChangePercent = round2((last - prev) / prev * 100)
		}
	}
	return ticker, nil
}
