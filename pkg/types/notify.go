package types

// SignalPayload 通知事件的统一内部载荷，各渠道消息均由它渲染
type SignalPayload struct {
	Event      string  `json:"event"`   // 固定为 qd.signal
	Version    int     `json:"version"` // 载荷版本
	Timestamp  int64   `json:"timestamp"`
	Strategy   string  `json:"strategy"`
	Market     Market  `json:"market"`
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe,omitempty"`
	SignalType string  `json:"signal_type"` // open_long / add_short / close_long ...
	RefPrice   float64 `json:"ref_price"`
	Stake      float64 `json:"stake_amount,omitempty"`
	Trace      string  `json:"trace,omitempty"`
	// Body 为已经渲染好的自由文本（预警消息、监控报告），非空时优先于模板字段
	Body string `json:"body,omitempty"`
}

// RenderedMessage 同一事件的四种渲染结果
type RenderedMessage struct {
	Title        string // 标题
	Plain        string // 纯文本
	TelegramHTML string // Telegram HTML（已转义）
	EmailHTML    string // 邮件HTML
}

// Outcome 单个渠道的投递结果，每个尝试过的渠道都必须产出一条
type Outcome struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ChannelTargets 各渠道的投递目标，来自规则的通知配置
type ChannelTargets struct {
	UserID         int64  `json:"user_id,omitempty"` // browser 渠道写入收件箱的归属
	WebhookURL     string `json:"webhook_url,omitempty"`
	WebhookToken   string `json:"webhook_token,omitempty"` // Bearer
	DiscordWebhook string `json:"discord_webhook,omitempty"`
	TelegramToken  string `json:"telegram_bot_token,omitempty"` // 必须为用户自有token
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}
