package notifier

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"qd-market-sentry/pkg/types"
)

// 渲染层：同一事件渲染成四种形态，保证各渠道描述一致

// Truncate 按字节上限截断，回退到rune边界避免产生非法UTF-8
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// fmtFloat 格式化数值并去掉多余的尾零
func fmtFloat(v float64, maxDecimals int) string {
	s := strconv.FormatFloat(v, 'f', maxDecimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// ActionOf 从信号类型前缀推导动作：open_/add_/close_/reduce_
func ActionOf(signalType string) string {
	st := strings.ToLower(signalType)
	switch {
	case strings.HasPrefix(st, "open_"):
		return "open"
	case strings.HasPrefix(st, "add_"):
		return "add"
	case strings.HasPrefix(st, "close_"):
		return "close"
	case strings.HasPrefix(st, "reduce_"):
		return "reduce"
	}
	return ""
}

// SideOf 从信号类型推导方向
func SideOf(signalType string) string {
	st := strings.ToLower(signalType)
	switch {
	case strings.Contains(st, "long"):
		return "long"
	case strings.Contains(st, "short"):
		return "short"
	}
	return ""
}

// Render 把统一载荷渲染成各渠道所需的消息形态
func Render(payload *types.SignalPayload) *types.RenderedMessage {
	action := strings.ToUpper(ActionOf(payload.SignalType))
	side := strings.ToUpper(SideOf(payload.SignalType))
	title := strings.TrimSpace(fmt.Sprintf("QD Signal | %s | %s %s", payload.Symbol, action, side))

	// 自由文本事件（预警消息、监控报告）直接携带正文
	if payload.Body != "" {
		return &types.RenderedMessage{
			Title:        title,
			Plain:        payload.Body,
			TelegramHTML: html.EscapeString(payload.Body),
			EmailHTML:    buildEmailHTML(title, [][2]string{{"内容", payload.Body}}),
		}
	}

	priceStr := fmtFloat(payload.RefPrice, 10)
	stakeStr := fmtFloat(payload.Stake, 12)
	tsISO := ""
	if payload.Timestamp > 0 {
		tsISO = time.Unix(payload.Timestamp, 0).UTC().Format(time.RFC3339)
	}

	plainLines := []string{
		"QuantDinger Signal",
		"Strategy: " + payload.Strategy,
		"Symbol: " + payload.Symbol,
		"Signal: " + payload.SignalType,
		"Price: " + priceStr,
		"Stake: " + stakeStr,
	}
	if payload.Trace != "" {
		plainLines = append(plainLines, "Trace: "+payload.Trace)
	}
	if tsISO != "" {
		plainLines = append(plainLines, "Time(UTC): "+tsISO)
	}

	// Telegram使用HTML格式，所有动态值先转义
	telegramLines := []string{
		"<b>QuantDinger Signal</b>",
		"",
		"<b>Strategy</b>: <code>" + html.EscapeString(payload.Strategy) + "</code>",
		"<b>Symbol</b>: <code>" + html.EscapeString(payload.Symbol) + "</code>",
		"<b>Signal</b>: <code>" + html.EscapeString(payload.SignalType) + "</code>",
		"<b>Price</b>: <code>" + html.EscapeString(priceStr) + "</code>",
		"<b>Stake</b>: <code>" + html.EscapeString(stakeStr) + "</code>",
	}
	if payload.Trace != "" {
		telegramLines = append(telegramLines, "<b>Trace</b>: <code>"+html.EscapeString(payload.Trace)+"</code>")
	}
	if tsISO != "" {
		telegramLines = append(telegramLines, "<b>Time (UTC)</b>: <code>"+tsISO+"</code>")
	}

	rows := [][2]string{
		{"Strategy", payload.Strategy},
		{"Symbol", payload.Symbol},
		{"Signal", payload.SignalType},
		{"Price", priceStr},
		{"Stake", stakeStr},
	}
	if tsISO != "" {
		rows = append(rows, [2]string{"Time (UTC)", tsISO})
	}

	return &types.RenderedMessage{
		Title:        title,
		Plain:        strings.Join(plainLines, "\n"),
		TelegramHTML: strings.Join(telegramLines, "\n"),
		EmailHTML:    buildEmailHTML("QuantDinger Signal", rows),
	}
}

// buildEmailHTML 邮件正文使用内联CSS表格，兼容性最好
func buildEmailHTML(title string, rows [][2]string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,Helvetica,sans-serif;max-width:560px;margin:0 auto;">`)
	b.WriteString(`<h2 style="color:#2c3e50;border-bottom:2px solid #3498db;padding-bottom:8px;">`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</h2><table style="width:100%;border-collapse:collapse;">`)
	for _, row := range rows {
		b.WriteString(`<tr><td style="padding:6px 10px;color:#7f8c8d;white-space:nowrap;">`)
		b.WriteString(html.EscapeString(row[0]))
		b.WriteString(`</td><td style="padding:6px 10px;color:#2c3e50;"><code>`)
		b.WriteString(strings.ReplaceAll(html.EscapeString(row[1]), "\n", "<br>"))
		b.WriteString(`</code></td></tr>`)
	}
	b.WriteString(`</table></div>`)
	return b.String()
}
