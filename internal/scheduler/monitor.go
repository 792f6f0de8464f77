package scheduler

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	gjson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"qd-market-sentry/internal/notifier"
	"qd-market-sentry/internal/store"
	"qd-market-sentry/pkg/types"
)

// PositionEntry 监控报告中的单个持仓条目
// 分析失败时Error非空，其余字段仍填充已知的价格与盈亏
type PositionEntry struct {
	Symbol     string  `json:"symbol"`
	Market     string  `json:"market"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	Price      float64 `json:"current_price"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"`
	Decision   string  `json:"decision,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// MonitorReport 一次监控运行的完整结果
type MonitorReport struct {
	MonitorID uint            `json:"monitor_id"`
	Name      string          `json:"name"`
	RunAt     time.Time       `json:"run_at"`
	Entries   []PositionEntry `json:"positions"`
}

// runMonitor 执行单个监控任务并投递报告
// 无论分析成败，next_run_at都前移一个周期
func (s *Scheduler) runMonitor(ctx context.Context, monitor *store.PortfolioMonitor) *MonitorReport {
	now := time.Now()
	report := &MonitorReport{
		MonitorID: monitor.ID,
		Name:      monitor.Name,
		RunAt:     now,
	}

	var positionIDs []uint
	if monitor.PositionIDs != "" {
		_ = gjson.Unmarshal([]byte(monitor.PositionIDs), &positionIDs)
	}

	positions, err := s.store.PositionsByIDs(positionIDs)
	if err != nil {
		zap.L().Error("❌ 监控任务加载持仓失败", zap.Uint("monitor_id", monitor.ID), zap.Error(err))
		positions = nil
	}

	if len(positions) > 0 {
		keySet := make(map[priceKey]bool)
		for _, p := range positions {
			keySet[priceKey{types.Market(p.Market), p.Symbol}] = true
		}
		keys := make([]priceKey, 0, len(keySet))
		for key := range keySet {
			keys = append(keys, key)
		}
		prices := s.fetchPrices(ctx, keys)

		for i := range positions {
			p := &positions[i]
			price := prices[priceKey{types.Market(p.Market), p.Symbol}]
			report.Entries = append(report.Entries, s.positionEntry(ctx, p, price, monitor.Language))
		}
	}

	interval := time.Duration(monitor.IntervalMin) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	if err := s.store.AdvanceMonitor(monitor.ID, now, now.Add(interval)); err != nil {
		zap.L().Error("❌ 更新监控任务运行状态失败", zap.Uint("monitor_id", monitor.ID), zap.Error(err))
	}

	zap.L().Info("✅ 监控任务完成",
		zap.Uint("monitor_id", monitor.ID),
		zap.String("name", monitor.Name),
		zap.Int("positions", len(report.Entries)))

	s.dispatcher.DispatchRendered(ctx, parseChannels(monitor.NotifyChannels), parseTargets(monitor.NotifyTargets, monitor.UserID), &types.SignalPayload{
		Event:     "qd.monitor",
		Version:   1,
		Timestamp: now.Unix(),
		Strategy:  monitor.Name,
		Body:      report.PlainText(monitor.Language),
	}, report.Rendered(monitor.Language))

	return report
}

// positionEntry 组装单个持仓条目
// 价格不可用只影响盈亏字段，AI分析照常执行，两类失败分别记录
func (s *Scheduler) positionEntry(ctx context.Context, p *store.Position, price *types.RealtimePrice, language string) PositionEntry {
	entry := PositionEntry{
		Symbol:     p.Symbol,
		Market:     p.Market,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
	}

	if price == nil || price.IsZero() {
		entry.Error = "价格不可用"
	} else {
		entry.Price = price.Price
		entry.PnL, entry.PnLPercent = store.PositionPnL(p, price.Price)
	}

	result, err := s.analyzer.Analyze(ctx, types.Market(p.Market), p.Symbol, language, "1D")
	switch {
	case err != nil && entry.Error != "":
		entry.Error = entry.Error + "; " + err.Error()
	case err != nil:
		entry.Error = err.Error()
	default:
		entry.Decision = result.Decision
		entry.Confidence = result.Confidence
		entry.Reasoning = result.Reasoning
	}
	return entry
}

func reportTitle(name, language string) string {
	if strings.HasPrefix(language, "zh") {
		return fmt.Sprintf("持仓监控报告 | %s", name)
	}
	return fmt.Sprintf("Portfolio Monitor Report | %s", name)
}

// fmtFloat 去掉无效尾零的价格格式化
func fmtFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func entryLabel(e *PositionEntry, language string) []string {
	pnlLabel, adviceLabel := "盈亏", "建议"
	if !strings.HasPrefix(language, "zh") {
		pnlLabel, adviceLabel = "PnL", "Advice"
	}

	var lines []string
	if e.Error != "" {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", e.Symbol, e.Side, e.Error))
	} else {
		lines = append(lines, fmt.Sprintf("%s (%s) %s -> %s  %s %+.2f (%+.2f%%)",
			e.Symbol, e.Side, fmtFloat(e.EntryPrice), fmtFloat(e.Price), pnlLabel, e.PnL, e.PnLPercent))
	}
	if e.Decision != "" {
		lines = append(lines, fmt.Sprintf("  %s: %s (%.0f%%)", adviceLabel, e.Decision, e.Confidence*100))
	}
	if e.Reasoning != "" {
		lines = append(lines, "  "+e.Reasoning)
	}
	return lines
}

// PlainText 报告的纯文本排版
func (r *MonitorReport) PlainText(language string) string {
	var b strings.Builder
	b.WriteString(reportTitle(r.Name, language))
	b.WriteString("\n")
	b.WriteString(r.RunAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("\n")

	if len(r.Entries) == 0 {
		if strings.HasPrefix(language, "zh") {
			b.WriteString("无持仓\n")
		} else {
			b.WriteString("No positions\n")
		}
		return b.String()
	}
	for i := range r.Entries {
		for _, line := range entryLabel(&r.Entries[i], language) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// telegramText 按持仓分段的Telegram排版，超长截断
func (r *MonitorReport) telegramText(language string) string {
	pnlLabel, adviceLabel := "盈亏", "建议"
	if !strings.HasPrefix(language, "zh") {
		pnlLabel, adviceLabel = "PnL", "Advice"
	}

	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(reportTitle(r.Name, language)) + "</b>\n")
	b.WriteString(html.EscapeString(r.RunAt.UTC().Format("2006-01-02 15:04:05 UTC")) + "\n")

	for i := range r.Entries {
		e := &r.Entries[i]
		b.WriteString("\n")
		if e.Error != "" {
			b.WriteString(fmt.Sprintf("<code>%s</code> %s\n",
				html.EscapeString(e.Symbol), html.EscapeString(e.Error)))
		} else {
			b.WriteString(fmt.Sprintf("<code>%s</code> (%s) %s → %s\n",
				html.EscapeString(e.Symbol), html.EscapeString(e.Side),
				fmtFloat(e.EntryPrice), fmtFloat(e.Price)))
			b.WriteString(fmt.Sprintf("%s: <b>%+.2f (%+.2f%%)</b>\n", pnlLabel, e.PnL, e.PnLPercent))
		}
		if e.Decision != "" {
			b.WriteString(fmt.Sprintf("%s: <b>%s</b> (%.0f%%)\n",
				adviceLabel, html.EscapeString(e.Decision), e.Confidence*100))
		}
		if e.Reasoning != "" {
			b.WriteString(html.EscapeString(e.Reasoning) + "\n")
		}
	}

	return notifier.Truncate(b.String(), 3900)
}

// emailHTML 用于邮件的表格排版
func (r *MonitorReport) emailHTML(language string) string {
	var rows strings.Builder
	for i := range r.Entries {
		e := &r.Entries[i]
		if e.Error != "" {
			rows.WriteString(fmt.Sprintf(
				`<tr><td style="padding:6px 12px;border-bottom:1px solid #eee;">%s</td><td colspan="3" style="padding:6px 12px;border-bottom:1px solid #eee;color:#E74C3C;">%s</td><td style="padding:6px 12px;border-bottom:1px solid #eee;">%s</td></tr>`,
				html.EscapeString(e.Symbol), html.EscapeString(e.Error), html.EscapeString(e.Decision)))
			continue
		}
		pnlColor := "#2ECC71"
		if e.PnL < 0 {
			pnlColor = "#E74C3C"
		}
		rows.WriteString(fmt.Sprintf(
			`<tr><td style="padding:6px 12px;border-bottom:1px solid #eee;">%s</td><td style="padding:6px 12px;border-bottom:1px solid #eee;">%s</td><td style="padding:6px 12px;border-bottom:1px solid #eee;">%s</td><td style="padding:6px 12px;border-bottom:1px solid #eee;color:%s;">%+.2f (%+.2f%%)</td><td style="padding:6px 12px;border-bottom:1px solid #eee;">%s</td></tr>`,
			html.EscapeString(e.Symbol), html.EscapeString(e.Side), fmtFloat(e.Price),
			pnlColor, e.PnL, e.PnLPercent, html.EscapeString(e.Decision)))
	}

	return fmt.Sprintf(
		`<div style="font-family:Arial,sans-serif;max-width:640px;"><h2 style="color:#333;">%s</h2><p style="color:#888;">%s</p><table style="border-collapse:collapse;width:100%%;">%s</table></div>`,
		html.EscapeString(reportTitle(r.Name, language)),
		r.RunAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		rows.String())
}

// Rendered 各渠道的预排版消息
func (r *MonitorReport) Rendered(language string) *types.RenderedMessage {
	return &types.RenderedMessage{
		Title:        reportTitle(r.Name, language),
		Plain:        r.PlainText(language),
		TelegramHTML: r.telegramText(language),
		EmailHTML:    r.emailHTML(language),
	}
}
