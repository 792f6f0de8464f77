package types

// Market 市场类型
type Market string

const (
	MarketCrypto  Market = "Crypto"
	MarketUSStock Market = "USStock"
	MarketAShare  Market = "AShare"
	MarketHShare  Market = "HShare"
	MarketForex   Market = "Forex"
	MarketFutures Market = "Futures"
)

// Timeframe K线周期
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1H  Timeframe = "1H"
	Timeframe4H  Timeframe = "4H"
	Timeframe1D  Timeframe = "1D"
	Timeframe1W  Timeframe = "1W"
	Timeframe1M  Timeframe = "1M"
)

// TimeframeSeconds 各周期对应的秒数
var TimeframeSeconds = map[Timeframe]int64{
	Timeframe1m:  60,
	Timeframe5m:  300,
	Timeframe15m: 900,
	Timeframe30m: 1800,
	Timeframe1H:  3600,
	Timeframe4H:  14400,
	Timeframe1D:  86400,
	Timeframe1W:  604800,
	Timeframe1M:  2592000,
}

// Seconds 返回周期秒数，未知周期返回0
func (tf Timeframe) Seconds() int64 {
	return TimeframeSeconds[tf]
}

// Candle K线数据，由归一化层构造后不再修改
type Candle struct {
	Time   int64   `json:"time"` // Unix秒，K线开始时间
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Ticker 实时行情快照，Last为0表示无数据
type Ticker struct {
	Last          float64 `json:"last"`
	Bid           float64 `json:"bid,omitempty"`
	Ask           float64 `json:"ask,omitempty"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// RealtimePrice 实时价格解析结果
// Source 标记数据来源：ticker / kline_1m / kline_1d / unknown
type RealtimePrice struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Source        string  `json:"source"`
	UpdateTime    int64   `json:"updateTime"`
}

// IsZero 实时价格是否为空结果
func (p *RealtimePrice) IsZero() bool {
	return p == nil || p.Price <= 0
}
