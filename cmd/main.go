package main

import (
	"log"

	"qd-market-sentry/pkg/config"
	"qd-market-sentry/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal("初始化日志失败:", err)
	}
	defer logger.Sync()

	app := NewApp(cfg)
	if err := app.Start(); err != nil {
		log.Fatal("启动失败:", err)
	}

	app.WaitForShutdown()
	app.Stop()
}
