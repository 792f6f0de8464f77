package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"qd-market-sentry/internal/store"
)

func alertFixture(mutate func(a *store.PriceAlert)) *store.PriceAlert {
	a := &store.PriceAlert{
		IsActive:  true,
		AlertType: "price_above",
		Threshold: 100,
	}
	if mutate != nil {
		mutate(a)
	}
	return a
}

func TestAlertEligible(t *testing.T) {
	now := time.Now()
	past := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name   string
		mutate func(a *store.PriceAlert)
		want   bool
	}{
		{
			name:   "未触发过的规则可评估",
			mutate: nil,
			want:   true,
		},
		{
			name: "停用的规则不评估",
			mutate: func(a *store.PriceAlert) {
				a.IsActive = false
			},
			want: false,
		},
		{
			name: "已触发且无重复间隔，终生一次",
			mutate: func(a *store.PriceAlert) {
				a.IsTriggered = true
				a.LastTriggeredAt = past(time.Hour)
			},
			want: false,
		},
		{
			name: "重复间隔600秒，599秒前触发过，冷却中",
			mutate: func(a *store.PriceAlert) {
				a.IsTriggered = true
				a.RepeatInterval = 600
				a.LastTriggeredAt = past(599 * time.Second)
			},
			want: false,
		},
		{
			name: "重复间隔600秒，601秒前触发过，冷却结束",
			mutate: func(a *store.PriceAlert) {
				a.IsTriggered = true
				a.RepeatInterval = 600
				a.LastTriggeredAt = past(601 * time.Second)
			},
			want: true,
		},
		{
			name: "已触发但缺失触发时间，按可评估处理",
			mutate: func(a *store.PriceAlert) {
				a.IsTriggered = true
				a.RepeatInterval = 600
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alertEligible(alertFixture(tt.mutate), now))
		})
	}
}

func TestEvaluateAlert(t *testing.T) {
	tests := []struct {
		name       string
		alertType  string
		price      float64
		threshold  float64
		pnlPercent float64
		want       bool
	}{
		{"价格未达上穿阈值", "price_above", 99.99, 100, 0, false},
		{"价格等于阈值即触发", "price_above", 100, 100, 0, true},
		{"价格超过阈值", "price_above", 100.01, 100, 0, true},
		{"价格高于下穿阈值", "price_below", 100.01, 100, 0, false},
		{"价格跌破阈值", "price_below", 99.5, 100, 0, true},
		{"盈利未达标", "pnl_above", 0, 10, 9.9, false},
		{"盈利达标", "pnl_above", 0, 10, 10.0, true},
		{"亏损触及止损", "pnl_below", 0, -5, -5.1, true},
		{"亏损未触及止损", "pnl_below", 0, -5, -4.9, false},
		{"未知类型不触发", "price_cross", 100, 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateAlert(tt.alertType, tt.price, tt.threshold, tt.pnlPercent))
		})
	}
}

func TestAlertMessage(t *testing.T) {
	msg := alertMessage("price_above", "zh-CN", "BTC/USDT", 65000.1234, 0, 65000)
	assert.Contains(t, msg, "价格突破预警")
	assert.Contains(t, msg, "BTC/USDT")
	assert.Contains(t, msg, "$65000.1234")

	msg = alertMessage("pnl_below", "en-US", "AAPL", 0, -5.26, -5)
	assert.Contains(t, msg, "Loss Alert")
	assert.Contains(t, msg, "-5.3%")

	// 未知语言回退英文
	assert.Equal(t, "Price/P&L Alert", alertTitle("fr-FR"))
	assert.Equal(t, "价格/盈亏预警", alertTitle("zh-TW"))
}

func TestParseChannelsAndTargets(t *testing.T) {
	assert.Equal(t, []string{"browser", "telegram"}, parseChannels(`["browser","telegram"]`))
	assert.Empty(t, parseChannels(""))
	assert.Empty(t, parseChannels("not json"))

	targets := parseTargets(`{"telegram_chat_id":"123","email":"a@b.com"}`, 42)
	assert.Equal(t, int64(42), targets.UserID)
	assert.Equal(t, "123", targets.TelegramChatID)
	assert.Equal(t, "a@b.com", targets.Email)

	targets = parseTargets("", 7)
	assert.Equal(t, int64(7), targets.UserID)
}
