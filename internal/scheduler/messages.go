package scheduler

import "fmt"

// 多语言预警消息模板

type alertTemplates struct {
	priceAbove string
	priceBelow string
	pnlAbove   string
	pnlBelow   string
	title      string
}

var alertMessages = map[string]alertTemplates{
	"zh-CN": {
		priceAbove: "🔔 价格突破预警: %s 当前价格 $%.4f 已突破 $%.4f",
		priceBelow: "🔔 价格跌破预警: %s 当前价格 $%.4f 已跌破 $%.4f",
		pnlAbove:   "🎉 盈利预警: %s 当前盈亏 %.1f%% 已达到 %.1f%% 目标",
		pnlBelow:   "⚠️ 亏损预警: %s 当前盈亏 %.1f%% 已触及 %.1f%% 止损线",
		title:      "价格/盈亏预警",
	},
	"en-US": {
		priceAbove: "🔔 Price Alert: %s current price $%.4f has exceeded $%.4f",
		priceBelow: "🔔 Price Alert: %s current price $%.4f has dropped below $%.4f",
		pnlAbove:   "🎉 Profit Alert: %s P&L %.1f%% has reached %.1f%% target",
		pnlBelow:   "⚠️ Loss Alert: %s P&L %.1f%% has hit %.1f%% stop-loss",
		title:      "Price/P&L Alert",
	},
}

func templatesFor(language string) alertTemplates {
	if len(language) >= 2 && language[:2] == "zh" {
		return alertMessages["zh-CN"]
	}
	return alertMessages["en-US"]
}

// alertMessage 渲染规则语言对应的预警消息
// 价格类预警用当前价与阈值，盈亏类用盈亏百分比与阈值
func alertMessage(alertType, language, symbol string, currentPrice, pnlPercent, threshold float64) string {
	t := templatesFor(language)
	switch alertType {
	case "price_above":
		return fmt.Sprintf(t.priceAbove, symbol, currentPrice, threshold)
	case "price_below":
		return fmt.Sprintf(t.priceBelow, symbol, currentPrice, threshold)
	case "pnl_above":
		return fmt.Sprintf(t.pnlAbove, symbol, pnlPercent, threshold)
	case "pnl_below":
		return fmt.Sprintf(t.pnlBelow, symbol, pnlPercent, threshold)
	}
	return ""
}

func alertTitle(language string) string {
	return templatesFor(language).title
}
