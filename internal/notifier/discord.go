package notifier

import (
	"context"
	"strings"
	"time"

	gjson "github.com/goccy/go-json"
	"qd-market-sentry/pkg/types"
)

type discordEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Fields    []discordEmbedField `json:"fields"`
	Timestamp string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordMessage struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// notifyDiscord 投递富文本embed
// 429按服务端给的retry_after等待（限制在0.5~3秒）后重试一次；
// 仍失败则降级为纯文本再试一次
func (d *Dispatcher) notifyDiscord(ctx context.Context, targets *types.ChannelTargets, rendered *types.RenderedMessage, payload *types.SignalPayload) (bool, string) {
	url := strings.TrimSpace(targets.DiscordWebhook)
	if url == "" {
		url = strings.TrimSpace(d.cfg.Discord.WebhookURL)
	}
	if url == "" {
		return false, "missing_discord_webhook_url"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false, "invalid_discord_webhook_url"
	}

	// 开仓加仓绿色，平仓减仓红色，其余蓝色
	color := 0x3498DB
	switch ActionOf(payload.SignalType) {
	case "open", "add":
		color = 0x2ECC71
	case "close", "reduce":
		color = 0xE74C3C
	}

	embed := discordEmbed{
		Title: "QuantDinger Signal",
		Color: color,
		Fields: []discordEmbedField{
			{Name: "Strategy", Value: payload.Strategy, Inline: true},
			{Name: "Symbol", Value: payload.Symbol, Inline: true},
			{Name: "Signal", Value: payload.SignalType, Inline: false},
			{Name: "Price", Value: fmtFloat(payload.RefPrice, 10), Inline: true},
			{Name: "Stake", Value: fmtFloat(payload.Stake, 12), Inline: true},
		},
	}
	if payload.Timestamp > 0 {
		embed.Timestamp = time.Unix(payload.Timestamp, 0).UTC().Format(time.RFC3339)
	}

	post := func(msg *discordMessage) (int, []byte, error) {
		resp, err := d.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(msg).
			Post(url)
		if err != nil {
			return 0, nil, err
		}
		return resp.StatusCode(), resp.Body(), nil
	}

	embedMsg := &discordMessage{Embeds: []discordEmbed{embed}}
	status, body, err := post(embedMsg)
	if err == nil && status >= 200 && status < 300 {
		return true, ""
	}

	if err == nil && status == 429 {
		wait := time.Second
		var rateResp struct {
			RetryAfter float64 `json:"retry_after"`
		}
		if gjson.Unmarshal(body, &rateResp) == nil && rateResp.RetryAfter > 0 {
			sec := rateResp.RetryAfter
			if sec < 0.5 {
				sec = 0.5
			}
			if sec > 3.0 {
				sec = 3.0
			}
			wait = time.Duration(sec * float64(time.Second))
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err().Error()
		case <-time.After(wait):
		}
		status, body, err = post(embedMsg)
		if err == nil && status >= 200 && status < 300 {
			return true, ""
		}
	}

	// 无论embed因何失败，放弃前都退回纯文本再试一次
	fallback := Truncate(rendered.Plain, 1900)
	if status2, _, err2 := post(&discordMessage{Content: fallback}); err2 == nil && status2 >= 200 && status2 < 300 {
		return true, ""
	}
	// 降级也失败时保留原始错误，定位问题更有用
	if err != nil {
		return false, err.Error()
	}
	return false, httpError(status, body)
}
