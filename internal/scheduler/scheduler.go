package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	gjson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"qd-market-sentry/internal/analysis"
	"qd-market-sentry/internal/market"
	"qd-market-sentry/internal/notifier"
	"qd-market-sentry/internal/store"
	"qd-market-sentry/pkg/types"
)

// Scheduler 预警与监控的后台调度器
// 单个控制循环每轮做两件事：全量评估预警规则、执行到期的监控任务，
// 然后固定休眠一个间隔；停止信号在每轮之间与休眠中生效，不打断进行中的一轮
type Scheduler struct {
	cfg        types.SchedulerConfig
	store      *store.Store
	prices     *market.PriceService
	dispatcher *notifier.Dispatcher
	analyzer   analysis.Analyzer
	limiter    *MarketLimiter

	// 手动触发的监控任务进入有界队列，由固定的工作协程消化
	runNowQueue chan uint
}

// NewScheduler 创建调度器
func NewScheduler(cfg types.SchedulerConfig, s *store.Store, prices *market.PriceService, dispatcher *notifier.Dispatcher, analyzer analysis.Analyzer) *Scheduler {
	queueCap := cfg.RunNowQueueCap
	if queueCap <= 0 {
		queueCap = 16
	}
	return &Scheduler{
		cfg:         cfg,
		store:       s,
		prices:      prices,
		dispatcher:  dispatcher,
		analyzer:    analyzer,
		limiter:     NewMarketLimiter(cfg.MarketSpacing),
		runNowQueue: make(chan uint, queueCap),
	}
}

func (s *Scheduler) interval() time.Duration {
	if s.cfg.Interval > 0 {
		return s.cfg.Interval
	}
	return 30 * time.Second
}

// Start 启动调度循环，阻塞直到上下文取消
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("🚀 预警调度器启动",
		zap.Duration("interval", s.interval()),
		zap.Int("monitor_batch", s.monitorBatch()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runNowWorker(ctx)
	}()

	for {
		s.runPass(ctx)

		select {
		case <-ctx.Done():
			wg.Wait()
			zap.L().Info("🛑 预警调度器已停止")
			return
		case <-time.After(s.interval()):
		}
	}
}

func (s *Scheduler) monitorBatch() int {
	if s.cfg.MonitorBatch > 0 {
		return s.cfg.MonitorBatch
	}
	return 10
}

// runPass 执行一轮调度
func (s *Scheduler) runPass(ctx context.Context) {
	s.checkAlerts(ctx)
	s.runDueMonitors(ctx)
}

type priceKey struct {
	market types.Market
	symbol string
}

// fetchPrices 并发解析一批(市场,符号)的实时价格
// 并发度受工作池限制，同市场请求额外受最小间隔约束；
// 单个查询超时或失败按价格未知处理，不影响本轮其他查询
func (s *Scheduler) fetchPrices(ctx context.Context, keys []priceKey) map[priceKey]*types.RealtimePrice {
	results := make(map[priceKey]*types.RealtimePrice, len(keys))
	var mu sync.Mutex

	workers := s.cfg.PriceWorkers
	if workers <= 0 {
		workers = 3
	}
	timeout := s.cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			s.limiter.Wait(key.market)

			lookupCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			price, err := s.prices.RealtimePrice(lookupCtx, key.market, key.symbol, false)
			if err != nil || price == nil {
				zap.L().Warn("⚠️ 价格查询失败，按未知价格处理",
					zap.String("market", string(key.market)),
					zap.String("symbol", key.symbol),
					zap.Error(err))
				price = &types.RealtimePrice{Source: "unknown"}
			}

			mu.Lock()
			results[key] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// alertEligible 规则当前是否可评估
// 未触发过的随时可评估；已触发的只有配置了重复间隔且冷却期已过才行
func alertEligible(a *store.PriceAlert, now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if !a.IsTriggered {
		return true
	}
	if a.RepeatInterval <= 0 {
		return false
	}
	if a.LastTriggeredAt == nil {
		return true
	}
	return now.Sub(*a.LastTriggeredAt) >= time.Duration(a.RepeatInterval)*time.Second
}

// evaluateAlert 阈值比较
// 盈亏类的阈值语义为百分比，与通知中展示的口径一致
func evaluateAlert(alertType string, price, threshold, pnlPercent float64) bool {
	switch alertType {
	case "price_above":
		return price >= threshold
	case "price_below":
		return price <= threshold
	case "pnl_above":
		return pnlPercent >= threshold
	case "pnl_below":
		return pnlPercent <= threshold
	}
	return false
}

// checkAlerts 全量评估启用中的预警
func (s *Scheduler) checkAlerts(ctx context.Context) {
	alerts, err := s.store.ActiveAlerts()
	if err != nil {
		zap.L().Error("❌ 读取预警规则失败", zap.Error(err))
		return
	}
	if len(alerts) == 0 {
		return
	}

	now := time.Now()

	// 先筛出本轮需要查价的规则，相同(市场,符号)只查一次
	eligible := make([]*store.PriceAlert, 0, len(alerts))
	keySet := make(map[priceKey]bool)
	for i := range alerts {
		a := &alerts[i]
		if !alertEligible(a, now) {
			continue
		}
		eligible = append(eligible, a)
		keySet[priceKey{types.Market(a.Market), a.Symbol}] = true
	}
	if len(eligible) == 0 {
		return
	}

	keys := make([]priceKey, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	prices := s.fetchPrices(ctx, keys)

	for _, a := range eligible {
		price := prices[priceKey{types.Market(a.Market), a.Symbol}]
		// 价格未知时跳过本轮，规则状态保持不变
		if price == nil || price.IsZero() {
			continue
		}

		var pnlPercent float64
		if a.AlertType == "pnl_above" || a.AlertType == "pnl_below" {
			if a.PositionID == nil {
				continue
			}
			position, err := s.store.PositionByID(*a.PositionID)
			if err != nil {
				zap.L().Warn("⚠️ 预警关联的持仓不存在",
					zap.Uint("alert_id", a.ID),
					zap.Uint("position_id", *a.PositionID))
				continue
			}
			_, pnlPercent = store.PositionPnL(position, price.Price)
		}

		if !evaluateAlert(a.AlertType, price.Price, a.Threshold, pnlPercent) {
			continue
		}

		// 先落库再通知：进程崩溃最多丢一条通知，不会重复记录同一次触发
		triggeredAt := time.Now()
		if err := s.store.MarkAlertTriggered(a.ID, triggeredAt); err != nil {
			zap.L().Error("❌ 记录预警触发状态失败", zap.Uint("alert_id", a.ID), zap.Error(err))
			continue
		}

		message := alertMessage(a.AlertType, a.Language, a.Symbol, price.Price, pnlPercent, a.Threshold)
		zap.L().Info("📢 预警触发",
			zap.Uint("alert_id", a.ID),
			zap.String("symbol", a.Symbol),
			zap.String("type", a.AlertType),
			zap.Float64("price", price.Price))

		s.dispatcher.Dispatch(ctx, parseChannels(a.NotifyChannels), parseTargets(a.NotifyTargets, a.UserID), &types.SignalPayload{
			Event:      "qd.alert",
			Version:    1,
			Timestamp:  triggeredAt.Unix(),
			Strategy:   alertTitle(a.Language),
			Market:     types.Market(a.Market),
			Symbol:     a.Symbol,
			SignalType: a.AlertType,
			RefPrice:   price.Price,
			Body:       message,
		})
	}
}

// runDueMonitors 执行本轮到期的监控任务
func (s *Scheduler) runDueMonitors(ctx context.Context) {
	monitors, err := s.store.DueMonitors(time.Now(), s.monitorBatch())
	if err != nil {
		zap.L().Error("❌ 查询到期监控任务失败", zap.Error(err))
		return
	}

	for i := range monitors {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.runMonitor(ctx, &monitors[i])
	}
}

// RunNow 手动触发一个监控任务
// async为真时任务提交到有界队列立即返回，结果随后经通知渠道送达；
// 队列满视为繁忙，返回错误而不是无限堆积
func (s *Scheduler) RunNow(ctx context.Context, monitorID uint, async bool) (*MonitorReport, error) {
	if !async {
		monitor, err := s.store.Monitor(monitorID)
		if err != nil {
			return nil, fmt.Errorf("监控任务不存在: %w", err)
		}
		return s.runMonitor(ctx, monitor), nil
	}

	select {
	case s.runNowQueue <- monitorID:
		return nil, nil
	default:
		return nil, fmt.Errorf("手动触发队列已满，请稍后再试")
	}
}

func (s *Scheduler) runNowWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case monitorID := <-s.runNowQueue:
			monitor, err := s.store.Monitor(monitorID)
			if err != nil {
				zap.L().Warn("⚠️ 手动触发的监控任务不存在", zap.Uint("monitor_id", monitorID))
				continue
			}
			s.runMonitor(ctx, monitor)
		}
	}
}

func parseChannels(raw string) []string {
	var channels []string
	if raw != "" {
		_ = gjson.Unmarshal([]byte(raw), &channels)
	}
	return channels
}

func parseTargets(raw string, userID int64) *types.ChannelTargets {
	targets := &types.ChannelTargets{}
	if raw != "" {
		_ = gjson.Unmarshal([]byte(raw), targets)
	}
	targets.UserID = userID
	return targets
}
