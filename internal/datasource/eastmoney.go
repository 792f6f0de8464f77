package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"qd-market-sentry/pkg/types"
)

// EastmoneyAdapter 东方财富行情适配器，A股与港股共用
// symbol为secid格式：1.600000（沪）、0.000001（深）、116.00700（港）
type EastmoneyAdapter struct {
	fetcher *Fetcher
}

// NewEastmoneyAdapter 创建东方财富适配器
func NewEastmoneyAdapter(fetcher *Fetcher) *EastmoneyAdapter {
	return &EastmoneyAdapter{fetcher: fetcher}
}

func (a *EastmoneyAdapter) Name() string { return "eastmoney" }

// 各周期对应的klt参数
var eastmoneyPeriods = map[types.Timeframe]string{
	types.Timeframe1m:  "1",
	types.Timeframe5m:  "5",
	types.Timeframe15m: "15",
	types.Timeframe30m: "30",
	types.Timeframe1H:  "60",
	types.Timeframe4H:  "240",
	types.Timeframe1D:  "101",
	types.Timeframe1W:  "102",
}

func (a *EastmoneyAdapter) Supports(tf types.Timeframe) bool {
	_, ok := eastmoneyPeriods[tf]
	return ok
}

// 沪深港行情时间均按东八区解析
var cnLocation = time.FixedZone("CST", 8*3600)

type eastmoneyKlineResp struct {
	Data struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// Klines 拉取K线，行格式 "日期,开,收,高,低,量,..."
func (a *EastmoneyAdapter) Klines(ctx context.Context, secid string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	klt, ok := eastmoneyPeriods[tf]
	if !ok {
		return []types.Candle{}, nil
	}

	end := "20500101"
	if beforeTime > 0 {
		end = time.Unix(beforeTime, 0).In(cnLocation).Format("20060102")
	}
	params := map[string]string{
		"secid":   secid,
		"fields1": "f1,f2,f3,f4,f5,f6",
		"fields2": "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
		"klt":     klt,
		"fqt":     "1",
		"end":     end,
		"lmt":     strconv.Itoa(limit),
	}

	var resp eastmoneyKlineResp
	if err := a.fetcher.GetJSON(ctx, "https://push2his.eastmoney.com/api/qt/stock/kline/get", params, nil, &resp); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			continue
		}
		ts, err := parseCNTime(parts[0])
		if err != nil {
			continue
		}
		open, err1 := strconv.ParseFloat(parts[1], 64)
		closePrice, err2 := strconv.ParseFloat(parts[2], 64)
		high, err3 := strconv.ParseFloat(parts[3], 64)
		low, err4 := strconv.ParseFloat(parts[4], 64)
		volume, err5 := strconv.ParseFloat(parts[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, NewCandle(ts, open, high, low, closePrice, volume))
	}
	return candles, nil
}

func parseCNTime(s string) (int64, error) {
	layout := "2006-01-02"
	if strings.Contains(s, ":") {
		layout = "2006-01-02 15:04"
	}
	t, err := time.ParseInLocation(layout, s, cnLocation)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// flexFloat 兼容数字、字符串与"-"占位符的数值字段
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "-" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

type eastmoneyQuoteResp struct {
	Data *struct {
		F43  flexFloat `json:"f43"`  // 最新价
		F44  flexFloat `json:"f44"`  // 最高
		F45  flexFloat `json:"f45"`  // 最低
		F46  flexFloat `json:"f46"`  // 今开
		F60  flexFloat `json:"f60"`  // 昨收
		F169 flexFloat `json:"f169"` // 涨跌额
		F170 flexFloat `json:"f170"` // 涨跌幅
	} `json:"data"`
}

// Ticker 实时行情，接口返回放大100倍的整数价，按启发式缩放
func (a *EastmoneyAdapter) Ticker(ctx context.Context, secid string) (*types.Ticker, error) {
	params := map[string]string{
		"secid":  secid,
		"fields": "f43,f44,f45,f46,f60,f169,f170",
	}

	var resp eastmoneyQuoteResp
	if err := a.fetcher.GetJSON(ctx, "https://push2.eastmoney.com/api/qt/stock/get", params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.F43 <= 0 {
		return nil, fmt.Errorf("东方财富未返回 %s 的行情", secid)
	}

	d := resp.Data
	divisor := 1.0
	if float64(d.F43) > 1000 {
		divisor = 100.0
	}

	return &types.Ticker{
		Last:          float64(d.F43) / divisor,
		High:          float64(d.F44) / divisor,
		Low:           float64(d.F45) / divisor,
		Open:          float64(d.F46) / divisor,
		PreviousClose: float64(d.F60) / divisor,
		Change:        float64(d.F169) / divisor,
		ChangePercent: float64(d.F170) / 100,
	}, nil
}
