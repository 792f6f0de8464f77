package types

import "time"

// Config 主配置结构
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Network   NetworkConfig   `mapstructure:"network"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
}

// AppConfig 应用配置
type AppConfig struct {
	Language string `mapstructure:"language"` // zh-CN / en-US
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出路径名
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}

// ProvidersConfig 上游数据源配置
type ProvidersConfig struct {
	FinnhubKey string `mapstructure:"finnhub_key"` // 美股行情，可选
	TiingoKey  string `mapstructure:"tiingo_key"`  // 外汇行情，可选
}

// CacheConfig 缓存配置
type CacheConfig struct {
	RealtimeTTL time.Duration            `mapstructure:"realtime_ttl"` // ticker/1m 快照TTL
	DailyTTL    time.Duration            `mapstructure:"daily_ttl"`    // 日线快照TTL
	KlineTTL    map[string]time.Duration `mapstructure:"kline_ttl"`    // 各周期K线TTL
	DefaultTTL  time.Duration            `mapstructure:"default_ttl"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`         // 循环间隔
	MonitorBatch   int           `mapstructure:"monitor_batch"`    // 每轮处理的到期监控数量
	PriceWorkers   int           `mapstructure:"price_workers"`    // 价格查询并发数
	MarketSpacing  time.Duration `mapstructure:"market_spacing"`   // 同一市场最小请求间隔
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout"`   // 单次价格查询超时
	RunNowQueueCap int           `mapstructure:"run_now_queue"`    // 手动触发队列容量
}

// NotifyConfig 通知渠道配置，进程级读取一次
type NotifyConfig struct {
	TimeoutSeconds int           `mapstructure:"timeout_seconds"` // 渠道HTTP超时
	WebhookSecret  string        `mapstructure:"webhook_secret"`  // HMAC签名密钥
	SMTP           SMTPConfig    `mapstructure:"smtp"`
	Twilio         TwilioConfig  `mapstructure:"twilio"`
	Discord        DiscordConfig `mapstructure:"discord"`
}

// SMTPConfig 邮件配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"` // STARTTLS
	UseSSL   bool   `mapstructure:"use_ssl"` // 隐式TLS
}

// TwilioConfig 短信配置
type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

// DiscordConfig Discord默认Webhook，可被规则配置覆盖
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// StreamConfig 行情推流配置
type StreamConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Endpoint          string        `mapstructure:"endpoint"`
	Symbols           []string      `mapstructure:"symbols"` // 预热的币种，如 BTCUSDT
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
}

// AnalysisConfig AI分析服务配置
type AnalysisConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // 为空时使用占位分析器
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}
