package stream

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gjson "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"qd-market-sentry/internal/cache"
	"qd-market-sentry/pkg/types"
)

// Client Binance行情推流客户端
// 订阅miniTicker推送并持续写入实时价缓存，让调度器查价时直接命中，
// 减少对REST接口的轮询；连接断开后按固定间隔自动重连
type Client struct {
	cfg   types.StreamConfig
	proxy string
	cache *cache.PriceCache

	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool

	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

// miniTickerEvent Binance 24小时迷你行情推送
type miniTickerEvent struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Close  string `json:"c"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
}

type subscription struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// NewClient 创建推流客户端
func NewClient(cfg types.StreamConfig, proxy string, priceCache *cache.PriceCache) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:           cfg,
		proxy:         proxy,
		cache:         priceCache,
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start 建连并启动读取、重连、心跳协程
func (c *Client) Start() error {
	if !c.cfg.Enabled || len(c.cfg.Symbols) == 0 {
		zap.L().Info("🔧 行情推流未启用")
		return nil
	}
	if err := c.connect(); err != nil {
		return err
	}
	if err := c.subscribe(); err != nil {
		return err
	}

	go c.readLoop()
	go c.reconnectLoop()
	go c.pingLoop()
	return nil
}

// Stop 关闭连接并停止所有协程
func (c *Client) Stop() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.isConnected = false
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 拷贝默认Dialer，代理设置不能污染包级共享实例
	dialer := *websocket.DefaultDialer
	if c.proxy != "" {
		proxyURL, err := url.Parse(c.proxy)
		if err != nil {
			return fmt.Errorf("解析代理URL失败: %v", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, _, err := dialer.Dial(c.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %v", err)
	}
	c.conn = conn
	c.isConnected = true

	zap.L().Info("✅ 行情推流连接成功",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.Strings("symbols", c.cfg.Symbols))
	return nil
}

func (c *Client) subscribe() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isConnected || c.conn == nil {
		return fmt.Errorf("WebSocket未连接")
	}

	sub := subscription{Method: "SUBSCRIBE", ID: 1}
	for _, symbol := range c.cfg.Symbols {
		sub.Params = append(sub.Params, strings.ToLower(symbol)+"@miniTicker")
	}
	if err := c.conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("发送订阅消息失败: %v", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("WebSocket读取panic", zap.Any("error", r))
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				time.Sleep(time.Second)
				continue
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-c.ctx.Done():
					return
				default:
				}
				zap.L().Error("WebSocket读取消息失败", zap.Error(err))
				c.handleDisconnect()
				continue
			}

			c.handleMessage(message)
		}
	}
}

// handleMessage 处理单条推送，非行情消息(订阅确认等)直接忽略
func (c *Client) handleMessage(message []byte) {
	var event miniTickerEvent
	if err := gjson.Unmarshal(message, &event); err != nil {
		return
	}
	if event.Event != "24hrMiniTicker" || event.Symbol == "" {
		return
	}

	last, err := strconv.ParseFloat(event.Close, 64)
	if err != nil || last <= 0 {
		return
	}
	open, _ := strconv.ParseFloat(event.Open, 64)
	high, _ := strconv.ParseFloat(event.High, 64)
	low, _ := strconv.ParseFloat(event.Low, 64)

	price := &types.RealtimePrice{
		Price:         last,
		Open:          open,
		High:          high,
		Low:           low,
		PreviousClose: open,
		Source:        "ticker",
		UpdateTime:    time.Now().Unix(),
	}
	if open > 0 {
		price.Change = math.Round((last-open)*10000) / 10000
		price.ChangePercent = math.Round((last-open)/open*100*100) / 100
	}

	key := cache.RealtimeKey(types.MarketCrypto, strings.ToUpper(event.Symbol))
	c.cache.Set(c.ctx, key, price, c.cache.RealtimeTTL())
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	c.isConnected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	select {
	case c.reconnectChan <- struct{}{}:
	default:
	}
}

func (c *Client) reconnectInterval() time.Duration {
	if c.cfg.ReconnectInterval > 0 {
		return c.cfg.ReconnectInterval
	}
	return 5 * time.Second
}

func (c *Client) reconnectLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectChan:
			for {
				select {
				case <-c.ctx.Done():
					return
				case <-time.After(c.reconnectInterval()):
				}

				zap.L().Info("🔄 尝试重连行情推流")
				if err := c.connect(); err != nil {
					zap.L().Warn("⚠️ 重连失败", zap.Error(err))
					continue
				}
				if err := c.subscribe(); err != nil {
					zap.L().Warn("⚠️ 重新订阅失败", zap.Error(err))
					continue
				}
				break
			}
		}
	}
}

func (c *Client) pingLoop() {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			connected := c.isConnected
			c.mu.RUnlock()

			if !connected || conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				zap.L().Warn("⚠️ 心跳发送失败", zap.Error(err))
			}
		}
	}
}
