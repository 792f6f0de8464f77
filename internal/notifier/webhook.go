package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	gjson "github.com/goccy/go-json"
	"qd-market-sentry/pkg/types"
)

// notifyWebhook 通用Webhook投递
// 配置了签名密钥时载荷只序列化一次，签名与发送使用同一份字节，
// 下游用 X-QD-Timestamp 和 X-QD-Signature 验签
// 429/5xx 固定退避1秒后重试一次
func (d *Dispatcher) notifyWebhook(ctx context.Context, targets *types.ChannelTargets, payload *types.SignalPayload) (bool, string) {
	url := strings.TrimSpace(targets.WebhookURL)
	if url == "" {
		return false, "missing_webhook_url"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false, "invalid_webhook_url"
	}

	body, err := gjson.Marshal(payload)
	if err != nil {
		return false, "webhook_marshal_failed:" + err.Error()
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if tok := strings.TrimSpace(targets.WebhookToken); tok != "" {
		headers["Authorization"] = "Bearer " + tok
	}

	// 签名基串为 时间戳 + "." + 原始字节
	if secret := strings.TrimSpace(d.cfg.WebhookSecret); secret != "" {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(ts + "."))
		mac.Write(body)
		headers["X-QD-Timestamp"] = ts
		headers["X-QD-Signature"] = hex.EncodeToString(mac.Sum(nil))
	}

	post := func() (int, []byte, error) {
		resp, err := d.client.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(body).
			Post(url)
		if err != nil {
			return 0, nil, err
		}
		return resp.StatusCode(), resp.Body(), nil
	}

	status, respBody, err := post()
	if err != nil {
		return false, err.Error()
	}
	if status >= 200 && status < 300 {
		return true, ""
	}

	if status == 429 || status == 500 || status == 502 || status == 503 || status == 504 {
		select {
		case <-ctx.Done():
			return false, ctx.Err().Error()
		case <-time.After(time.Second):
		}
		status, respBody, err = post()
		if err != nil {
			return false, err.Error()
		}
		if status >= 200 && status < 300 {
			return true, ""
		}
	}
	return false, httpError(status, respBody)
}
