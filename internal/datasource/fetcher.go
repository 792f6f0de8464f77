package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	gjson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"qd-market-sentry/pkg/types"
)

// Fetcher 统一的上游HTTP获取器，所有适配器共用同一实例
// 超时与代理来自网络配置，失败自动重试
type Fetcher struct {
	client     *resty.Client
	maxRetries int
}

// NewFetcher 创建数据获取器
func NewFetcher(cfg types.NetworkConfig) *Fetcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", browserUA)

	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
		zap.L().Info("🌐 使用HTTP代理", zap.String("proxy", cfg.Proxy))
	}

	return &Fetcher{
		client:     client,
		maxRetries: 3,
	}
}

// GetBytes 执行GET请求，返回状态码与响应体
// 网络层错误按次数重试，非200状态不重试，由调用方决定语义
func (f *Fetcher) GetBytes(ctx context.Context, url string, params map[string]string, headers map[string]string) (int, []byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		req := f.client.R().SetContext(ctx)
		if len(params) > 0 {
			req.SetQueryParams(params)
		}
		if len(headers) > 0 {
			req.SetHeaders(headers)
		}

		resp, err := req.Get(url)
		if err == nil {
			return resp.StatusCode(), resp.Body(), nil
		}

		lastErr = err
		if attempt < f.maxRetries {
			zap.L().Warn("⚠️ 请求失败，准备重试",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return 0, nil, fmt.Errorf("请求 %s 失败（已重试%d次）: %w", url, f.maxRetries, lastErr)
}

// GetJSON 执行GET请求并解析JSON响应
func (f *Fetcher) GetJSON(ctx context.Context, url string, params map[string]string, headers map[string]string, out interface{}) error {
	status, body, err := f.GetBytes(ctx, url, params, headers)
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("请求 %s 返回状态码 %d", url, status)
	}
	if err := gjson.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", url, err)
	}
	return nil
}
