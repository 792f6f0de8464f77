package datasource

import (
	"context"
	"fmt"
	"strconv"

	gjson "github.com/goccy/go-json"
	"qd-market-sentry/pkg/types"
)

// BinanceAdapter 币安行情适配器，现货与U本位合约共用实现
// symbol为币安格式：BTCUSDT
type BinanceAdapter struct {
	fetcher *Fetcher
	futures bool
}

// NewBinanceAdapter 创建币安现货适配器
func NewBinanceAdapter(fetcher *Fetcher) *BinanceAdapter {
	return &BinanceAdapter{fetcher: fetcher}
}

// NewBinanceFuturesAdapter 创建币安U本位合约适配器
func NewBinanceFuturesAdapter(fetcher *Fetcher) *BinanceAdapter {
	return &BinanceAdapter{fetcher: fetcher, futures: true}
}

func (a *BinanceAdapter) Name() string {
	if a.futures {
		return "binance_futures"
	}
	return "binance"
}

var binanceIntervals = map[types.Timeframe]string{
	types.Timeframe1m:  "1m",
	types.Timeframe5m:  "5m",
	types.Timeframe15m: "15m",
	types.Timeframe30m: "30m",
	types.Timeframe1H:  "1h",
	types.Timeframe4H:  "4h",
	types.Timeframe1D:  "1d",
	types.Timeframe1W:  "1w",
	types.Timeframe1M:  "1M",
}

func (a *BinanceAdapter) Supports(tf types.Timeframe) bool {
	_, ok := binanceIntervals[tf]
	return ok
}

func (a *BinanceAdapter) baseURL() string {
	if a.futures {
		return "https://fapi.binance.com/fapi/v1"
	}
	return "https://api.binance.com/api/v3"
}

// Klines 拉取K线
// 币安返回二维数组：[开盘毫秒, 开, 高, 低, 收, 量, ...]，价格为字符串
func (a *BinanceAdapter) Klines(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	interval, ok := binanceIntervals[tf]
	if !ok {
		return []types.Candle{}, nil
	}

	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	if beforeTime > 0 {
		params["endTime"] = strconv.FormatInt(beforeTime*1000, 10)
	}

	var rows [][]gjson.RawMessage
	if err := a.fetcher.GetJSON(ctx, a.baseURL()+"/klines", params, nil, &rows); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openMs int64
		if err := gjson.Unmarshal(row[0], &openMs); err != nil {
			continue
		}
		open, err1 := rawFloat(row[1])
		high, err2 := rawFloat(row[2])
		low, err3 := rawFloat(row[3])
		closePrice, err4 := rawFloat(row[4])
		volume, err5 := rawFloat(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, NewCandle(openMs/1000, open, high, low, closePrice, volume))
	}
	return candles, nil
}

type binance24hResp struct {
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	PrevClosePrice     string `json:"prevClosePrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// Ticker 24小时行情快照
func (a *BinanceAdapter) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	var resp binance24hResp
	if err := a.fetcher.GetJSON(ctx, a.baseURL()+"/ticker/24hr", map[string]string{"symbol": symbol}, nil, &resp); err != nil {
		return nil, err
	}

	last, err := strconv.ParseFloat(resp.LastPrice, 64)
	if err != nil || last <= 0 {
		return nil, fmt.Errorf("币安未返回 %s 的有效价格", symbol)
	}

	parse := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}

	return &types.Ticker{
		Last:          last,
		Bid:           parse(resp.BidPrice),
		Ask:           parse(resp.AskPrice),
		Open:          parse(resp.OpenPrice),
		High:          parse(resp.HighPrice),
		Low:           parse(resp.LowPrice),
		PreviousClose: parse(resp.PrevClosePrice),
		Change:        parse(resp.PriceChange),
		ChangePercent: parse(resp.PriceChangePercent),
	}, nil
}
