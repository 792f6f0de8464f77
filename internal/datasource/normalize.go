package datasource

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"qd-market-sentry/pkg/types"
)

// 归一化层：纯函数，无I/O
// 各数据源的原始行情经此转换成统一K线后不再修改

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewCandle 构造归一化K线，价格保留4位小数，成交量保留2位
func NewCandle(t int64, open, high, low, closePrice, volume float64) types.Candle {
	return types.Candle{
		Time:   t,
		Open:   round4(open),
		High:   round4(high),
		Low:    round4(low),
		Close:  round4(closePrice),
		Volume: round2(volume),
	}
}

// Finalize K线结果统一后处理：
// 按时间升序排序，同一时间去重保留后者，过滤 time < beforeTime，截取最近limit条
func Finalize(candles []types.Candle, beforeTime int64, limit int) []types.Candle {
	if len(candles) == 0 {
		return []types.Candle{}
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time < candles[j].Time
	})

	// 排序稳定，同一时间保留最后出现的一条
	deduped := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if n := len(deduped); n > 0 && deduped[n-1].Time == c.Time {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}

	if beforeTime > 0 {
		filtered := deduped[:0]
		for _, c := range deduped {
			if c.Time < beforeTime {
				filtered = append(filtered, c)
			}
		}
		deduped = filtered
	}

	if limit > 0 && len(deduped) > limit {
		deduped = deduped[len(deduped)-limit:]
	}
	return deduped
}

// WarnIfStale 最新K线落后超过2个周期时记录警告
func WarnIfStale(source string, symbol string, tf types.Timeframe, candles []types.Candle) {
	if len(candles) == 0 {
		return
	}
	secs := tf.Seconds()
	if secs <= 0 {
		return
	}
	latest := candles[len(candles)-1].Time
	if time.Now().Unix()-latest > 2*secs {
		zap.L().Warn("⚠️ 数据源返回的行情可能过期",
			zap.String("source", source),
			zap.String("symbol", symbol),
			zap.String("timeframe", string(tf)),
			zap.Int64("latest", latest))
	}
}

// AggregateWindows 按固定条数聚合K线（如4根1H合成一根4H）
// 末尾不足一组的残余丢弃，不产出半截K线
func AggregateWindows(candles []types.Candle, size int) []types.Candle {
	if size <= 1 || len(candles) < size {
		return []types.Candle{}
	}
	out := make([]types.Candle, 0, len(candles)/size)
	for i := 0; i+size <= len(candles); i += size {
		out = append(out, mergeBucket(candles[i:i+size], candles[i].Time))
	}
	return out
}

// CalendarUnit 日历聚合单位
type CalendarUnit int

const (
	CalendarWeek CalendarUnit = iota
	CalendarMonth
)

// AggregateCalendar 按日历周/月聚合日线
// 周K线对齐到周一，月K线对齐到月初；桶时间取对齐后的起点
func AggregateCalendar(daily []types.Candle, unit CalendarUnit) []types.Candle {
	if len(daily) == 0 {
		return []types.Candle{}
	}

	out := make([]types.Candle, 0)
	var bucket []types.Candle
	var bucketStart int64 = -1

	flush := func() {
		if len(bucket) > 0 {
			out = append(out, mergeBucket(bucket, bucketStart))
			bucket = bucket[:0]
		}
	}

	for _, c := range daily {
		start := calendarStart(c.Time, unit)
		if start != bucketStart {
			flush()
			bucketStart = start
		}
		bucket = append(bucket, c)
	}
	flush()
	return out
}

func calendarStart(ts int64, unit CalendarUnit) int64 {
	t := time.Unix(ts, 0).UTC()
	switch unit {
	case CalendarMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()
	default:
		// 周一为一周起点
		offset := (int(t.Weekday()) + 6) % 7
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -offset).Unix()
	}
}

// mergeBucket 聚合规则：开=首开，收=尾收，高=最高，低=最低，量=求和
func mergeBucket(bucket []types.Candle, start int64) types.Candle {
	merged := types.Candle{
		Time:   start,
		Open:   bucket[0].Open,
		High:   bucket[0].High,
		Low:    bucket[0].Low,
		Close:  bucket[len(bucket)-1].Close,
		Volume: 0,
	}
	for _, c := range bucket {
		if c.High > merged.High {
			merged.High = c.High
		}
		if c.Low < merged.Low {
			merged.Low = c.Low
		}
		merged.Volume += c.Volume
	}
	merged.Volume = round2(merged.Volume)
	return merged
}
