package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
	"qd-market-sentry/pkg/types"
)

// Load 加载配置
func Load() (*types.Config, error) {
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	setDefaults()

	// 读取环境变量
	viper.AutomaticEnv()

	// 优先尝试读取本地配置文件
	viper.SetConfigName("config.local")
	if err := viper.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	var config types.Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("app.language", "zh-CN")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file_path", "logs")
	viper.SetDefault("log.max_size", 200)
	viper.SetDefault("log.max_age", 30)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("network.proxy", "")
	viper.SetDefault("network.timeout", 30*time.Second)
	viper.SetDefault("providers.finnhub_key", "")
	viper.SetDefault("providers.tiingo_key", "")
	viper.SetDefault("cache.realtime_ttl", 30*time.Second)
	viper.SetDefault("cache.daily_ttl", 300*time.Second)
	viper.SetDefault("cache.default_ttl", 300*time.Second)
	viper.SetDefault("redis.url", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.max_idle_conns", 10)
	viper.SetDefault("database.mysql.max_open_conns", 100)
	viper.SetDefault("scheduler.interval", 30*time.Second)
	viper.SetDefault("scheduler.monitor_batch", 10)
	viper.SetDefault("scheduler.price_workers", 3)
	viper.SetDefault("scheduler.market_spacing", 300*time.Millisecond)
	viper.SetDefault("scheduler.lookup_timeout", 10*time.Second)
	viper.SetDefault("scheduler.run_now_queue", 16)
	viper.SetDefault("notify.timeout_seconds", 6)
	viper.SetDefault("notify.webhook_secret", "")
	viper.SetDefault("notify.smtp.port", 587)
	viper.SetDefault("notify.smtp.use_tls", true)
	viper.SetDefault("notify.smtp.use_ssl", false)
	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.endpoint", "wss://stream.binance.com:9443/ws")
	viper.SetDefault("stream.reconnect_interval", 5*time.Second)
	viper.SetDefault("stream.ping_interval", 20*time.Second)
	viper.SetDefault("analysis.timeout", 60*time.Second)
}
