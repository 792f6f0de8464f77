package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"qd-market-sentry/internal/store"
	"qd-market-sentry/pkg/types"
)

// InboxWriter browser渠道的落点：站内通知收件箱
type InboxWriter interface {
	InsertInbox(n *store.InboxNotification) error
}

// Dispatcher 多渠道通知分发器
// 每个渠道独立投递，单个渠道失败不影响其他渠道，
// 每个尝试过的渠道都会产出一条结果
type Dispatcher struct {
	cfg    types.NotifyConfig
	inbox  InboxWriter
	client *resty.Client
}

// NewDispatcher 创建分发器，渠道凭证进程级读取一次
func NewDispatcher(cfg types.NotifyConfig, inbox InboxWriter) *Dispatcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Dispatcher{
		cfg:   cfg,
		inbox: inbox,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "QuantDinger/1.0 (+https://www.quantdinger.com)"),
	}
}

// Dispatch 向所有指定渠道投递同一事件
// 渠道列表为空时降级为控制台输出并记录日志
func (d *Dispatcher) Dispatch(ctx context.Context, channels []string, targets *types.ChannelTargets, payload *types.SignalPayload) map[string]types.Outcome {
	return d.DispatchRendered(ctx, channels, targets, payload, Render(payload))
}

// DispatchRendered 投递调用方自行渲染的消息
// 监控报告等长文本按渠道预排版，不走默认模板
func (d *Dispatcher) DispatchRendered(ctx context.Context, channels []string, targets *types.ChannelTargets, payload *types.SignalPayload, rendered *types.RenderedMessage) map[string]types.Outcome {
	results := make(map[string]types.Outcome)

	if len(channels) == 0 {
		zap.L().Info("📢 未配置通知渠道，输出到控制台",
			zap.String("title", rendered.Title),
			zap.String("message", rendered.Plain))
		return results
	}
	if targets == nil {
		targets = &types.ChannelTargets{}
	}

	for _, ch := range channels {
		name := strings.ToLower(strings.TrimSpace(ch))
		if name == "" {
			continue
		}

		var ok bool
		var errMsg string
		switch name {
		case "browser":
			ok, errMsg = d.notifyBrowser(targets, rendered, payload)
		case "webhook":
			ok, errMsg = d.notifyWebhook(ctx, targets, payload)
		case "discord":
			ok, errMsg = d.notifyDiscord(ctx, targets, rendered, payload)
		case "telegram":
			ok, errMsg = d.notifyTelegram(ctx, targets, rendered)
		case "email":
			ok, errMsg = d.notifyEmail(targets, rendered)
		case "phone":
			ok, errMsg = d.notifyPhone(ctx, targets, rendered)
		default:
			ok, errMsg = false, fmt.Sprintf("unsupported_channel:%s", name)
		}

		results[name] = types.Outcome{OK: ok, Error: errMsg}
		if ok {
			zap.L().Info("✅ 通知投递成功",
				zap.String("channel", name),
				zap.String("symbol", payload.Symbol))
		} else {
			zap.L().Warn("❌ 通知投递失败",
				zap.String("channel", name),
				zap.String("symbol", payload.Symbol),
				zap.String("error", errMsg))
		}
	}
	return results
}

// notifyBrowser 写入站内收件箱，存储写入成功即视为送达
func (d *Dispatcher) notifyBrowser(targets *types.ChannelTargets, rendered *types.RenderedMessage, payload *types.SignalPayload) (bool, string) {
	if d.inbox == nil {
		return false, "inbox_store_unavailable"
	}
	category := "alert"
	if payload.Event != "" && payload.Event != "qd.signal" {
		category = payload.Event
	}
	err := d.inbox.InsertInbox(&store.InboxNotification{
		UserID:   targets.UserID,
		Title:    rendered.Title,
		Content:  rendered.Plain,
		Category: category,
	})
	if err != nil {
		return false, err.Error()
	}
	return true, ""
}

// httpError 统一的HTTP失败描述，正文截断到300字节
func httpError(status int, body []byte) string {
	return fmt.Sprintf("http_%d:%s", status, Truncate(string(body), 300))
}
