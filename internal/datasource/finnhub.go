package datasource

import (
	"context"
	"fmt"

	"qd-market-sentry/pkg/types"
)

// FinnhubAdapter Finnhub行情适配器，仅用于美股实时报价
type FinnhubAdapter struct {
	fetcher *Fetcher
	apiKey  string
}

// NewFinnhubAdapter 创建Finnhub适配器
func NewFinnhubAdapter(fetcher *Fetcher, apiKey string) *FinnhubAdapter {
	return &FinnhubAdapter{fetcher: fetcher, apiKey: apiKey}
}

func (a *FinnhubAdapter) Name() string { return "finnhub" }

type finnhubQuoteResp struct {
	Current       float64 `json:"c"`  // 最新价
	Change        float64 `json:"d"`  // 涨跌额
	ChangePercent float64 `json:"dp"` // 涨跌幅
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
}

// Ticker 实时报价
func (a *FinnhubAdapter) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	params := map[string]string{
		"symbol": symbol,
		"token":  a.apiKey,
	}
	var resp finnhubQuoteResp
	if err := a.fetcher.GetJSON(ctx, "https://finnhub.io/api/v1/quote", params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Current <= 0 {
		return nil, fmt.Errorf("finnhub未返回 %s 的有效报价", symbol)
	}
	return &types.Ticker{
		Last:          resp.Current,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		High:          resp.High,
		Low:           resp.Low,
		Open:          resp.Open,
		PreviousClose: resp.PrevClose,
	}, nil
}
