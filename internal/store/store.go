package store

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"qd-market-sentry/pkg/types"
)

// Store 规则与持仓的持久层
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
}

// Open 连接MySQL并迁移表结构
func Open(config types.MySQLConfig) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 生产环境使用Silent
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := New(db)
	if err := s.autoMigrate(); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	zap.L().Info("✅ 数据库连接成功", zap.String("database", config.Database))
	return s, nil
}

// New 用现有连接创建Store
func New(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		validate: validator.New(),
	}
}

func (s *Store) autoMigrate() error {
	return s.db.AutoMigrate(
		&PriceAlert{},
		&Position{},
		&PortfolioMonitor{},
		&InboxNotification{},
	)
}

// AlertInput 预警规则的创建/更新入参
type AlertInput struct {
	UserID         int64   `validate:"required"`
	PositionID     *uint   ``
	Market         string  `validate:"required"`
	Symbol         string  `validate:"required"`
	AlertType      string  `validate:"required,oneof=price_above price_below pnl_above pnl_below"`
	Threshold      float64 `validate:"required"`
	RepeatInterval int64   `validate:"gte=0"`
	NotifyChannels string
	NotifyTargets  string
	Language       string
}

// ValidateAlertInput 同步校验规则参数，非法参数在此被拒绝，不会进入调度器
func (s *Store) ValidateAlertInput(input *AlertInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("预警参数不合法: %w", err)
	}
	// 价格类预警的阈值必须为正，盈亏类阈值是百分比，允许负数
	if (input.AlertType == "price_above" || input.AlertType == "price_below") && input.Threshold <= 0 {
		return fmt.Errorf("价格预警的阈值必须为正数: %f", input.Threshold)
	}
	if (input.AlertType == "pnl_above" || input.AlertType == "pnl_below") && input.PositionID == nil {
		return fmt.Errorf("盈亏预警必须关联持仓")
	}
	return nil
}

// UpsertAlert 按(用户,持仓,类型)更新或创建预警
// 重新激活已有预警时重置触发状态，使其立即可再次评估
func (s *Store) UpsertAlert(input *AlertInput) (*PriceAlert, error) {
	if err := s.ValidateAlertInput(input); err != nil {
		return nil, err
	}

	language := input.Language
	if language == "" {
		language = "zh-CN"
	}

	var existing PriceAlert
	query := s.db.Where("user_id = ? AND market = ? AND symbol = ? AND alert_type = ?",
		input.UserID, input.Market, input.Symbol, input.AlertType)
	if input.PositionID != nil {
		query = query.Where("position_id = ?", *input.PositionID)
	}

	err := query.First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"threshold":       input.Threshold,
			"repeat_interval": input.RepeatInterval,
			"notify_channels": input.NotifyChannels,
			"notify_targets":  input.NotifyTargets,
			"language":        language,
			"is_active":       true,
			"is_triggered":    false,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	alert := &PriceAlert{
		UserID:         input.UserID,
		PositionID:     input.PositionID,
		Market:         input.Market,
		Symbol:         input.Symbol,
		AlertType:      input.AlertType,
		Threshold:      input.Threshold,
		IsActive:       true,
		RepeatInterval: input.RepeatInterval,
		NotifyChannels: input.NotifyChannels,
		NotifyTargets:  input.NotifyTargets,
		Language:       language,
	}
	if err := s.db.Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

// ActiveAlerts 所有启用中的预警
func (s *Store) ActiveAlerts() ([]PriceAlert, error) {
	var alerts []PriceAlert
	err := s.db.Where("is_active = ?", true).Find(&alerts).Error
	return alerts, err
}

// MarkAlertTriggered 记录触发状态，必须在发送通知之前完成
func (s *Store) MarkAlertTriggered(alertID uint, now time.Time) error {
	return s.db.Model(&PriceAlert{}).Where("id = ?", alertID).Updates(map[string]interface{}{
		"is_triggered":      true,
		"last_triggered_at": now,
		"trigger_count":     gorm.Expr("trigger_count + 1"),
	}).Error
}

// DueMonitors 到期的监控任务，按到期时间排序并限制批量大小
func (s *Store) DueMonitors(now time.Time, batch int) ([]PortfolioMonitor, error) {
	var monitors []PortfolioMonitor
	err := s.db.Where("is_active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at").
		Limit(batch).
		Find(&monitors).Error
	return monitors, err
}

// Monitor 按ID读取监控任务
func (s *Store) Monitor(id uint) (*PortfolioMonitor, error) {
	var monitor PortfolioMonitor
	if err := s.db.First(&monitor, id).Error; err != nil {
		return nil, err
	}
	return &monitor, nil
}

// AdvanceMonitor 推进监控任务的运行状态，成功失败都要推进
func (s *Store) AdvanceMonitor(monitorID uint, now time.Time, next time.Time) error {
	return s.db.Model(&PortfolioMonitor{}).Where("id = ?", monitorID).Updates(map[string]interface{}{
		"last_run_at": now,
		"next_run_at": next,
		"run_count":   gorm.Expr("run_count + 1"),
	}).Error
}

// PositionsByIDs 批量读取持仓
func (s *Store) PositionsByIDs(ids []uint) ([]Position, error) {
	if len(ids) == 0 {
		return []Position{}, nil
	}
	var positions []Position
	err := s.db.Where("id IN ?", ids).Find(&positions).Error
	return positions, err
}

// PositionByID 按ID读取持仓
func (s *Store) PositionByID(id uint) (*Position, error) {
	var position Position
	if err := s.db.First(&position, id).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

// InsertInbox 写入站内通知，browser渠道的投递即此写入
func (s *Store) InsertInbox(n *InboxNotification) error {
	return s.db.Create(n).Error
}

// PositionPnL 按持仓与现价计算盈亏额与盈亏百分比
// 空头方向盈亏取反；百分比以开仓市值为基数
func PositionPnL(p *Position, currentPrice float64) (pnl float64, pnlPercent float64) {
	if currentPrice <= 0 || p.EntryPrice <= 0 || p.Quantity <= 0 {
		return 0, 0
	}
	if p.Side == "short" {
		pnl = (p.EntryPrice - currentPrice) * p.Quantity
	} else {
		pnl = (currentPrice - p.EntryPrice) * p.Quantity
	}
	pnlPercent = pnl / (p.EntryPrice * p.Quantity) * 100
	return pnl, pnlPercent
}

// PortfolioSummary 持仓组合汇总
type PortfolioSummary struct {
	TotalValue    float64            `json:"total_value"`
	TotalCost     float64            `json:"total_cost"`
	TotalPnL      float64            `json:"total_pnl"`
	TotalPnLPct   float64            `json:"total_pnl_percent"`
	PositionCount int                `json:"position_count"`
	MarketShares  map[string]float64 `json:"market_shares"` // 各市场市值占比
}

// Summary 计算用户的组合汇总，现价由调用方提供的查价函数解析
// 查不到价的持仓按成本计入市值
func (s *Store) Summary(userID int64, priceOf func(market, symbol string) float64) (*PortfolioSummary, error) {
	var positions []Position
	if err := s.db.Where("user_id = ?", userID).Find(&positions).Error; err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		PositionCount: len(positions),
		MarketShares:  make(map[string]float64),
	}
	marketValue := make(map[string]float64)

	for i := range positions {
		p := &positions[i]
		cost := p.EntryPrice * p.Quantity
		price := priceOf(p.Market, p.Symbol)
		value := cost
		if price > 0 {
			value = price * p.Quantity
			pnl, _ := PositionPnL(p, price)
			summary.TotalPnL += pnl
		}
		summary.TotalCost += cost
		summary.TotalValue += value
		marketValue[p.Market] += value
	}

	if summary.TotalCost > 0 {
		summary.TotalPnLPct = summary.TotalPnL / summary.TotalCost * 100
	}
	if summary.TotalValue > 0 {
		for market, value := range marketValue {
			summary.MarketShares[market] = value / summary.TotalValue * 100
		}
	}
	return summary, nil
}
