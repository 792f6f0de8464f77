package datasource

import (
	"testing"
	"time"

	gjson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qd-market-sentry/pkg/types"
)

func TestParseCNTime(t *testing.T) {
	// 北京时间2024-11-30 00:00 = UTC 2024-11-29 16:00
	ts, err := parseCNTime("2024-11-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 29, 16, 0, 0, 0, time.UTC).Unix(), ts)

	ts, err = parseCNTime("2024-11-30 14:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 30, 6, 30, 0, 0, time.UTC).Unix(), ts)

	_, err = parseCNTime("30/11/2024")
	assert.Error(t, err)
}

func TestParseTencentTime(t *testing.T) {
	minute, err := parseTencentTime("202411301430")
	require.NoError(t, err)
	day, err2 := parseTencentTime("2024-11-30")
	require.NoError(t, err2)

	// 同一天的分钟级时间戳晚于当天零点
	assert.Greater(t, minute, day)
	assert.Equal(t, day+int64(14*3600+30*60), minute)

	_, err = parseTencentTime("2024/11/30")
	assert.Error(t, err)
}

func TestFlexFloat(t *testing.T) {
	var row struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
		D flexFloat `json:"d"`
	}
	err := gjson.Unmarshal([]byte(`{"a": 12.5, "b": "34.7", "c": "-", "d": null}`), &row)
	require.NoError(t, err)

	assert.Equal(t, flexFloat(12.5), row.A)
	assert.Equal(t, flexFloat(34.7), row.B)
	assert.Equal(t, flexFloat(0), row.C)
	assert.Equal(t, flexFloat(0), row.D)
}

func TestTiingoSymbol(t *testing.T) {
	assert.Equal(t, "xauusd", TiingoSymbol("XAUUSD"))
	assert.Equal(t, "eurusd", TiingoSymbol("EURUSD"))
	// 表外符号按小写透传
	assert.Equal(t, "usdsek", TiingoSymbol("USDSEK"))
}

func TestYahooSpanDays(t *testing.T) {
	// 1分钟数据最多回看7天
	assert.Equal(t, 7, yahooSpanDays(types.Timeframe1m, 5000))
	// 小时级最多59天
	assert.Equal(t, 59, yahooSpanDays(types.Timeframe1H, 5000))
	// 日线无上限，按条数加缓冲
	assert.Equal(t, 105, yahooSpanDays(types.Timeframe1D, 100))
}

func TestRawHelpers(t *testing.T) {
	assert.Equal(t, "14.52", rawString(gjson.RawMessage(`"14.52"`)))

	v, err := rawFloat(gjson.RawMessage(`"14.52"`))
	require.NoError(t, err)
	assert.Equal(t, 14.52, v)

	v, err = rawFloat(gjson.RawMessage(`14.52`))
	require.NoError(t, err)
	assert.Equal(t, 14.52, v)
}
