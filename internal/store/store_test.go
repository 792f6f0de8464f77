package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validInput(mutate func(in *AlertInput)) *AlertInput {
	in := &AlertInput{
		UserID:    1,
		Market:    "Crypto",
		Symbol:    "BTC/USDT",
		AlertType: "price_above",
		Threshold: 65000,
	}
	if mutate != nil {
		mutate(in)
	}
	return in
}

func TestValidateAlertInput(t *testing.T) {
	s := New(nil)
	posID := uint(3)

	tests := []struct {
		name    string
		mutate  func(in *AlertInput)
		wantErr bool
	}{
		{"合法的价格预警", nil, false},
		{
			"盈亏预警关联持仓",
			func(in *AlertInput) {
				in.AlertType = "pnl_above"
				in.Threshold = 10
				in.PositionID = &posID
			},
			false,
		},
		{
			"止损阈值允许为负",
			func(in *AlertInput) {
				in.AlertType = "pnl_below"
				in.Threshold = -5
				in.PositionID = &posID
			},
			false,
		},
		{
			"未知预警类型",
			func(in *AlertInput) { in.AlertType = "price_cross" },
			true,
		},
		{
			"缺少符号",
			func(in *AlertInput) { in.Symbol = "" },
			true,
		},
		{
			"价格预警阈值必须为正",
			func(in *AlertInput) { in.Threshold = -1 },
			true,
		},
		{
			"盈亏预警缺少持仓",
			func(in *AlertInput) {
				in.AlertType = "pnl_below"
				in.Threshold = -5
			},
			true,
		},
		{
			"重复间隔不能为负",
			func(in *AlertInput) { in.RepeatInterval = -60 },
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateAlertInput(validInput(tt.mutate))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositionPnL(t *testing.T) {
	tests := []struct {
		name     string
		position Position
		price    float64
		wantPnL  float64
		wantPct  float64
	}{
		{
			name:     "多头盈利",
			position: Position{Side: "long", EntryPrice: 100, Quantity: 10},
			price:    110,
			wantPnL:  100,
			wantPct:  10,
		},
		{
			name:     "多头亏损",
			position: Position{Side: "long", EntryPrice: 100, Quantity: 10},
			price:    95,
			wantPnL:  -50,
			wantPct:  -5,
		},
		{
			name:     "空头方向取反",
			position: Position{Side: "short", EntryPrice: 100, Quantity: 10},
			price:    95,
			wantPnL:  50,
			wantPct:  5,
		},
		{
			name:     "价格非法返回零",
			position: Position{Side: "long", EntryPrice: 100, Quantity: 10},
			price:    0,
			wantPnL:  0,
			wantPct:  0,
		},
		{
			name:     "持仓数据非法返回零",
			position: Position{Side: "long", EntryPrice: 0, Quantity: 10},
			price:    100,
			wantPnL:  0,
			wantPct:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pnl, pct := PositionPnL(&tt.position, tt.price)
			assert.InDelta(t, tt.wantPnL, pnl, 1e-9)
			assert.InDelta(t, tt.wantPct, pct, 1e-9)
		})
	}
}
