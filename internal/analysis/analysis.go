package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"qd-market-sentry/pkg/types"
)

// Report AI分析结论
type Report struct {
	Decision   string  `json:"decision"`   // buy / sell / hold
	Confidence float64 `json:"confidence"` // 0~1
	Reasoning  string  `json:"reasoning"`
}

// Analyzer 外部AI分析服务的边界接口
// 单个持仓分析失败不应中断同一监控内其余持仓的分析，由调用方兜住
type Analyzer interface {
	Analyze(ctx context.Context, market types.Market, symbol, language, timeframe string) (*Report, error)
}

// HTTPAnalyzer 调用远端分析服务
type HTTPAnalyzer struct {
	cfg    types.AnalysisConfig
	client *resty.Client
}

// NewAnalyzer 按配置创建分析器，未配置端点时返回禁用实现
func NewAnalyzer(cfg types.AnalysisConfig) Analyzer {
	if cfg.Endpoint == "" {
		return &disabledAnalyzer{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPAnalyzer{
		cfg:    cfg,
		client: resty.New().SetTimeout(timeout),
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, market types.Market, symbol, language, timeframe string) (*Report, error) {
	var report Report
	req := a.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"market":    string(market),
			"symbol":    symbol,
			"language":  language,
			"timeframe": timeframe,
		}).
		SetResult(&report)
	if a.cfg.APIKey != "" {
		req.SetHeader("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := req.Post(a.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("调用分析服务失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("分析服务返回状态码 %d", resp.StatusCode())
	}
	return &report, nil
}

// disabledAnalyzer 未配置分析服务时的占位实现
type disabledAnalyzer struct{}

func (d *disabledAnalyzer) Analyze(ctx context.Context, market types.Market, symbol, language, timeframe string) (*Report, error) {
	return nil, fmt.Errorf("未配置分析服务端点")
}
