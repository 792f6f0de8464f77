package notifier

import (
	"context"
	"strings"

	"qd-market-sentry/pkg/types"
)

// notifyTelegram 通过Bot API发送HTML消息
// Bot token必须是用户自有的，不提供共享默认token，缺失时明确失败
func (d *Dispatcher) notifyTelegram(ctx context.Context, targets *types.ChannelTargets, rendered *types.RenderedMessage) (bool, string) {
	token := strings.TrimSpace(targets.TelegramToken)
	if token == "" {
		return false, "missing_telegram_bot_token (请在个人中心配置 Telegram Bot Token)"
	}
	chatID := strings.TrimSpace(targets.TelegramChatID)
	if chatID == "" {
		return false, "missing_telegram_chat_id"
	}

	text := rendered.TelegramHTML
	if text == "" {
		text = rendered.Plain
	}
	text = Truncate(text, 3900)

	resp, err := d.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":                  chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": "true",
		}).
		Post("https://api.telegram.org/bot" + token + "/sendMessage")
	if err != nil {
		return false, err.Error()
	}
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return true, ""
	}
	return false, httpError(resp.StatusCode(), resp.Body())
}
