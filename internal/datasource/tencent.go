package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gjson "github.com/goccy/go-json"
	"golang.org/x/text/encoding/simplifiedchinese"
	"qd-market-sentry/pkg/types"
)

// TencentAdapter 腾讯财经行情适配器
// symbol为腾讯格式代码：sh600000、sz000001、hk00700
// A股与港股解析器各自持有一个实例组合使用
type TencentAdapter struct {
	fetcher *Fetcher
}

// NewTencentAdapter 创建腾讯财经适配器
func NewTencentAdapter(fetcher *Fetcher) *TencentAdapter {
	return &TencentAdapter{fetcher: fetcher}
}

func (a *TencentAdapter) Name() string { return "tencent" }

// 腾讯分钟级接口不支持240分钟，4H由1H聚合而来
var tencentMinutePeriods = map[types.Timeframe]string{
	types.Timeframe1m:  "m1",
	types.Timeframe5m:  "m5",
	types.Timeframe15m: "m15",
	types.Timeframe30m: "m30",
	types.Timeframe1H:  "m60",
}

var tencentDayPeriods = map[types.Timeframe]string{
	types.Timeframe1D: "day",
	types.Timeframe1W: "week",
}

func (a *TencentAdapter) Supports(tf types.Timeframe) bool {
	if tf == types.Timeframe4H {
		return true
	}
	if _, ok := tencentMinutePeriods[tf]; ok {
		return true
	}
	_, ok := tencentDayPeriods[tf]
	return ok
}

// Klines 拉取K线，4H先取1H再按4根一组聚合
// 分钟级接口不支持指定结束日期，历史过滤交给上层归一化
func (a *TencentAdapter) Klines(ctx context.Context, symbol string, tf types.Timeframe, limit int, beforeTime int64) ([]types.Candle, error) {
	if tf == types.Timeframe4H {
		hourly, err := a.Klines(ctx, symbol, types.Timeframe1H, limit*4+10, beforeTime)
		if err != nil {
			return nil, err
		}
		aggregated := AggregateWindows(hourly, 4)
		if len(aggregated) > limit {
			aggregated = aggregated[len(aggregated)-limit:]
		}
		return aggregated, nil
	}

	var url, dataKey string
	if period, ok := tencentMinutePeriods[tf]; ok {
		url = fmt.Sprintf("http://ifzq.gtimg.cn/appstock/app/kline/mkline?param=%s,%s,,%d", symbol, period, limit)
		dataKey = period
	} else if period, ok := tencentDayPeriods[tf]; ok {
		endDate := ""
		if beforeTime > 0 {
			endDate = time.Unix(beforeTime, 0).In(cnLocation).Format("2006-01-02")
		}
		url = fmt.Sprintf("http://web.ifzq.gtimg.cn/appstock/app/fqkline/get?param=%s,%s,,%s,%d,qfq", symbol, period, endDate, limit)
		dataKey = period
	} else {
		return []types.Candle{}, nil
	}

	var resp struct {
		Code int                                    `json:"code"`
		Data map[string]map[string]gjson.RawMessage `json:"data"`
	}
	if err := a.fetcher.GetJSON(ctx, url, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("腾讯财经返回异常code=%d", resp.Code)
	}

	stock, ok := resp.Data[symbol]
	if !ok {
		return []types.Candle{}, nil
	}

	// 复权日线优先取qfqday
	raw, ok := stock["qfq"+dataKey]
	if !ok {
		if raw, ok = stock[dataKey]; !ok {
			return []types.Candle{}, nil
		}
	}

	var rows [][]gjson.RawMessage
	if err := gjson.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("解析腾讯K线失败: %w", err)
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		ts, err := parseTencentTime(rawString(row[0]))
		if err != nil {
			continue
		}
		open, err1 := rawFloat(row[1])
		closePrice, err2 := rawFloat(row[2])
		high, err3 := rawFloat(row[3])
		low, err4 := rawFloat(row[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		var volume float64
		if len(row) > 5 {
			volume, _ = rawFloat(row[5])
		}
		candles = append(candles, NewCandle(ts, open, high, low, closePrice, volume))
	}
	return candles, nil
}

// 分钟级时间格式 202411301430，日线格式 2024-11-30
func parseTencentTime(s string) (int64, error) {
	var layout string
	switch len(s) {
	case 12:
		layout = "200601021504"
	case 10:
		layout = "2006-01-02"
	default:
		return 0, fmt.Errorf("无法识别的时间格式: %s", s)
	}
	t, err := time.ParseInLocation(layout, s, cnLocation)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func rawString(raw gjson.RawMessage) string {
	return strings.Trim(string(raw), `"`)
}

func rawFloat(raw gjson.RawMessage) (float64, error) {
	return strconv.ParseFloat(rawString(raw), 64)
}

// Ticker 实时行情，gtimg接口返回GBK编码的`~`分隔字段
func (a *TencentAdapter) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	status, body, err := a.fetcher.GetBytes(ctx, "https://qt.gtimg.cn/q="+symbol, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("腾讯行情接口返回状态码 %d", status)
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		// 部分返回本身已是UTF-8
		decoded = body
	}

	parts := strings.Split(string(decoded), "~")
	if len(parts) < 35 {
		return nil, fmt.Errorf("腾讯行情字段不足: %s", symbol)
	}

	last, err := strconv.ParseFloat(parts[3], 64)
	if err != nil || last <= 0 {
		return nil, fmt.Errorf("腾讯未返回 %s 的有效价格", symbol)
	}

	prevClose, _ := strconv.ParseFloat(parts[4], 64)
	open, _ := strconv.ParseFloat(parts[5], 64)
	change, _ := strconv.ParseFloat(parts[31], 64)
	changePercent, _ := strconv.ParseFloat(parts[32], 64)
	high, _ := strconv.ParseFloat(parts[33], 64)
	low, _ := strconv.ParseFloat(parts[34], 64)

	return &types.Ticker{
		Last:          last,
		Open:          open,
		High:          high,
		Low:           low,
		PreviousClose: prevClose,
		Change:        change,
		ChangePercent: changePercent,
	}, nil
}
