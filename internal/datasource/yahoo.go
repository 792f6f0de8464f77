package datasource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"qd-market-sentry/pkg/types"
)

// YahooAdapter 雅虎财经图表接口适配器
// symbol为雅虎格式代码：AAPL、600000.SS、0700.HK、GC=F
type YahooAdapter struct {
	fetcher *Fetcher
}

// NewYahooAdapter 创建雅虎财经适配器
func NewYahooAdapter(fetcher *Fetcher) *YahooAdapter {
	return &YahooAdapter{fetcher: fetcher}
}

func (a *YahooAdapter) Name() string { return "yahoo" }

var yahooIntervals = map[types.Timeframe]string{
	types.Timeframe1m:  "1m",
	types.Timeframe5m:  "5m",
	types.Timeframe15m: "15m",
	types.Timeframe30m: "30m",
	types.Timeframe1H:  "60m",
	types.Timeframe1D:  "1d",
	types.Timeframe1W:  "1wk",
	types.Timeframe1M:  "1mo",
}

func (a *YahooAdapter) Supports(tf types.Timeframe) bool {
	_, ok := yahooIntervals[tf]
	return ok
}

// 估算取数窗口天数，雅虎分钟级数据有回看上限
func yahooSpanDays(tf types.Timeframe, limit int) int {
	secs := tf.Seconds()
	days := int(secs)*limit/86400 + 5
	switch tf {
	case types.Timeframe1m:
		if days > 7 {
			days = 7
		}
	case types.Timeframe5m, types.Timeframe15m, types.Timeframe30m, types.Timeframe1H:
		if days > 59 {
			days = 59
		}
	}
	return days
}

type yahooQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type yahooChartResult struct {
	Meta struct {
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		ChartPreviousClose *float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []yahooQuote `json:"quote"`
	} `json:"indicators"`
}

type yahooChartResp struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
	} `json:"chart"`
}

func (a *YahooAdapter) chart(ctx context.Context, symbol string, interval string, start, end int64) (*yahooChartResp, error) {
	params := map[string]string{
		"interval": interval,
		"period1":  strconv.FormatInt(start, 10),
		"period2":  strconv.FormatInt(end, 10),
	}
	var resp yahooChartResp
	url := "https://query1.finance.yahoo.com/v8/finance/chart/" + symbol
	if err := a.fetcher.GetJSON(ctx, url, params, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("雅虎未返回 %s 的图表数据", symbol)
	}
	return &resp, nil
}

// 取数窗口，指定beforeTime时以其为结束锚点，雅虎的结束参数为开区间
func yahooWindow(tf types.Timeframe, limit int, beforeTime int64) (int64, int64) {
	end := time.Now().AddDate(0, 0, 1)
	if beforeTime > 0 {
		end = time.Unix(beforeTime, 0)
	}
	start := end.AddDate(0, 0, -yahooSpanDays(tf, limit)-1)
	return start.Unix(), end.Unix()
}

// Klines 拉取K线
func (a *YahooAdapter) Klines(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	interval, ok := yahooIntervals[tf]
	if !ok {
		return []types.Candle{}, nil
	}

	start, end := yahooWindow(tf, limit, beforeTime)
	resp, err := a.chart(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []types.Candle{}, nil
	}
	quote := result.Indicators.Quote[0]

	candles := make([]types.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		// 停牌时段各字段为null，整行跳过
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		var volume float64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		candles = append(candles, NewCandle(ts, *quote.Open[i], *quote.High[i], *quote.Low[i], *quote.Close[i], volume))
	}
	return candles, nil
}

// Ticker 用日线图表的meta字段拼装实时行情
func (a *YahooAdapter) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	now := time.Now()
	resp, err := a.chart(ctx, symbol, "1d", now.AddDate(0, 0, -7).Unix(), now.AddDate(0, 0, 1).Unix())
	if err != nil {
		return nil, err
	}
	return tickerFromChart(&resp.Chart.Result[0], symbol)
}

// tickerFromChart 从图表响应拼装行情
// OHLC四个数组的长度可能彼此不同，逐个做边界检查
func tickerFromChart(result *yahooChartResult, symbol string) (*types.Ticker, error) {
	if result.Meta.RegularMarketPrice == nil || *result.Meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("雅虎未返回 %s 的最新价", symbol)
	}
	last := *result.Meta.RegularMarketPrice

	var prevClose float64
	if result.Meta.ChartPreviousClose != nil {
		prevClose = *result.Meta.ChartPreviousClose
	}

	ticker := &types.Ticker{
		Last:          last,
		PreviousClose: prevClose,
	}
	if len(result.Indicators.Quote) > 0 {
		quote := result.Indicators.Quote[0]
		if n := len(quote.Close); n > 0 {
			if n <= len(quote.Open) && quote.Open[n-1] != nil {
				ticker.Open = *quote.Open[n-1]
			}
			if n <= len(quote.High) && quote.High[n-1] != nil {
				ticker.High = *quote.High[n-1]
			}
			if n <= len(quote.Low) && quote.Low[n-1] != nil {
				ticker.Low = *quote.Low[n-1]
			}
			// 倒数第二根日线的收盘价优先作为昨收
			if n > 1 && quote.Close[n-2] != nil {
				ticker.PreviousClose = *quote.Close[n-2]
			}
		}
	}
	if ticker.PreviousClose > 0 {
		ticker.Change = round4(last - ticker.PreviousClose)
		ticker.ChangePercent = round2((last - ticker.PreviousClose) / ticker.PreviousClose * 100)
	}
	return ticker, nil
}
