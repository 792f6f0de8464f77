package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"qd-market-sentry/internal/analysis"
	"qd-market-sentry/internal/cache"
	"qd-market-sentry/internal/datasource"
	"qd-market-sentry/internal/market"
	"qd-market-sentry/internal/notifier"
	"qd-market-sentry/internal/scheduler"
	"qd-market-sentry/internal/store"
	"qd-market-sentry/internal/stream"
	"qd-market-sentry/pkg/types"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	streamClient *stream.Client
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动应用程序
func (app *App) Start() error {
	zap.L().Info("🚀 QD Market Sentry 启动中...")

	db, err := store.Open(app.config.Database.MySQL)
	if err != nil {
		return err
	}

	priceCache := cache.NewPriceCache(app.config.Redis, app.config.Cache)
	fetcher := datasource.NewFetcher(app.config.Network)
	registry := market.NewRegistry(fetcher, app.config.Providers)
	priceService := market.NewPriceService(registry, priceCache)

	dispatcher := notifier.NewDispatcher(app.config.Notify, db)
	analyzer := analysis.NewAnalyzer(app.config.Analysis)

	taskScheduler := scheduler.NewScheduler(app.config.Scheduler, db, priceService, dispatcher, analyzer)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		taskScheduler.Start(app.ctx)
	}()

	// 行情推流按需启动，失败不影响主流程，调度器会回退到REST查价
	app.streamClient = stream.NewClient(app.config.Stream, app.config.Network.Proxy, priceCache)
	if err := app.streamClient.Start(); err != nil {
		zap.L().Warn("⚠️ 行情推流启动失败，使用REST查价", zap.Error(err))
	}

	zap.L().Info("✅ QD Market Sentry 已启动")
	return nil
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()
	if app.streamClient != nil {
		app.streamClient.Stop()
	}

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ QD Market Sentry 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
