package store

import "time"

// PriceAlert 价格/盈亏预警规则
// 触发一次后保持is_triggered，直到重复间隔过去才重新可触发；
// repeat_interval为0表示终生只触发一次
type PriceAlert struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          int64      `gorm:"not null;index:idx_user_active" json:"user_id"`
	PositionID      *uint      `gorm:"index" json:"position_id"` // pnl类预警必须关联持仓
	Market          string     `gorm:"type:varchar(20);not null" json:"market"`
	Symbol          string     `gorm:"type:varchar(32);not null" json:"symbol"`
	AlertType       string     `gorm:"type:varchar(20);not null" json:"alert_type"`
	Threshold       float64    `gorm:"type:decimal(20,8);not null" json:"threshold"`
	IsActive        bool       `gorm:"default:true;index:idx_user_active" json:"is_active"`
	IsTriggered     bool       `gorm:"default:false" json:"is_triggered"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	RepeatInterval  int64      `gorm:"default:0" json:"repeat_interval"` // 秒
	TriggerCount    int        `gorm:"default:0" json:"trigger_count"`
	NotifyChannels  string     `gorm:"type:varchar(255)" json:"notify_channels"` // JSON数组
	NotifyTargets   string     `gorm:"type:text" json:"notify_targets"`          // JSON编码的渠道目标
	Language        string     `gorm:"type:varchar(10);default:'zh-CN'" json:"language"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Position 持仓
type Position struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"not null;index" json:"user_id"`
	Market     string    `gorm:"type:varchar(20);not null" json:"market"`
	Symbol     string    `gorm:"type:varchar(32);not null" json:"symbol"`
	Side       string    `gorm:"type:varchar(8);not null;default:'long'" json:"side"` // long / short
	EntryPrice float64   `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	Quantity   float64   `gorm:"type:decimal(20,8);not null" json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PortfolioMonitor 定时AI监控任务
// next_run_at每次运行后无条件前移一个周期，分析失败也不例外，避免卡死重试
type PortfolioMonitor struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	Name           string     `gorm:"type:varchar(64)" json:"name"`
	PositionIDs    string     `gorm:"type:varchar(512)" json:"position_ids"` // JSON数组
	IntervalMin    int        `gorm:"not null;default:60" json:"interval_minutes"`
	IsActive       bool       `gorm:"default:true;index:idx_active_next" json:"is_active"`
	LastRunAt      *time.Time `json:"last_run_at"`
	NextRunAt      time.Time  `gorm:"index:idx_active_next" json:"next_run_at"`
	RunCount       int        `gorm:"default:0" json:"run_count"`
	NotifyChannels string     `gorm:"type:varchar(255)" json:"notify_channels"`
	NotifyTargets  string     `gorm:"type:text" json:"notify_targets"`
	Language       string     `gorm:"type:varchar(10);default:'zh-CN'" json:"language"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// InboxNotification 站内通知收件箱，browser渠道的落点
type InboxNotification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	Category  string    `gorm:"type:varchar(32);default:'alert'" json:"category"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
