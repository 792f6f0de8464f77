package notifier

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"qd-market-sentry/pkg/types"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abc", Truncate("abcdef", 3))

	// 截断点落在多字节字符中间时回退到上一个完整字符
	zh := strings.Repeat("涨", 100)
	got := Truncate(zh, 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 9, len(got))
	assert.LessOrEqual(t, len(got), 10)

	mixed := "ab" + strings.Repeat("跌", 5)
	got = Truncate(mixed, 4)
	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))
}

func TestActionOf(t *testing.T) {
	tests := []struct {
		signalType string
		want       string
	}{
		{"open_long", "open"},
		{"ADD_SHORT", "add"},
		{"close_long", "close"},
		{"reduce_short", "reduce"},
		{"price_above", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ActionOf(tt.signalType), tt.signalType)
	}
}

func TestSideOf(t *testing.T) {
	assert.Equal(t, "long", SideOf("open_long"))
	assert.Equal(t, "short", SideOf("CLOSE_SHORT"))
	assert.Equal(t, "", SideOf("price_above"))
}

func TestFmtFloatTrimsZeros(t *testing.T) {
	assert.Equal(t, "65000.5", fmtFloat(65000.5, 10))
	assert.Equal(t, "100", fmtFloat(100, 10))
	assert.Equal(t, "0", fmtFloat(0, 10))
	assert.Equal(t, "0.001", fmtFloat(0.001, 10))
}

func TestRenderSignal(t *testing.T) {
	payload := &types.SignalPayload{
		Event:      "qd.signal",
		Version:    1,
		Timestamp:  1767225600,
		Strategy:   "donchian_breakout",
		Market:     types.MarketCrypto,
		Symbol:     "BTC/USDT",
		Timeframe:  "4H",
		SignalType: "open_long",
		RefPrice:   65000.5,
		Stake:      1000,
		Trace:      "run-42",
	}

	rendered := Render(payload)

	assert.Equal(t, "QD Signal | BTC/USDT | OPEN LONG", rendered.Title)
	assert.Contains(t, rendered.Plain, "QuantDinger Signal")
	assert.Contains(t, rendered.Plain, "Strategy: donchian_breakout")
	assert.Contains(t, rendered.Plain, "Price: 65000.5")
	assert.Contains(t, rendered.Plain, "Trace: run-42")
	assert.Contains(t, rendered.Plain, "Time(UTC): 2026-01-01T00:00:00Z")

	assert.Contains(t, rendered.TelegramHTML, "<b>QuantDinger Signal</b>")
	assert.Contains(t, rendered.TelegramHTML, "<code>BTC/USDT</code>")

	assert.Contains(t, rendered.EmailHTML, "QuantDinger Signal")
	assert.Contains(t, rendered.EmailHTML, "65000.5")
}

func TestRenderTitleWithoutAction(t *testing.T) {
	rendered := Render(&types.SignalPayload{Symbol: "AAPL", SignalType: "price_above", Body: "x"})
	assert.Equal(t, "QD Signal | AAPL |", rendered.Title)
}

func TestRenderFreeTextBody(t *testing.T) {
	payload := &types.SignalPayload{
		Event:  "qd.alert",
		Symbol: "600519",
		Body:   "🔔 价格突破预警: 600519 当前价格 $1700.0000 已突破 $1690.0000",
	}

	rendered := Render(payload)
	assert.Equal(t, payload.Body, rendered.Plain)
	assert.Contains(t, rendered.EmailHTML, "600519")
}

func TestRenderEscapesTelegramHTML(t *testing.T) {
	rendered := Render(&types.SignalPayload{
		Symbol:     "A<B>",
		SignalType: "open_long",
		Strategy:   "s&p",
	})

	assert.Contains(t, rendered.TelegramHTML, "s&amp;p")
	assert.NotContains(t, rendered.TelegramHTML, "<B>")
}
