package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	gjson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"qd-market-sentry/pkg/types"
)

// memoryEntry 内存模式的缓存项
type memoryEntry struct {
	value  []byte
	expiry time.Time
}

// PriceCache 行情TTL缓存
// 优先使用Redis，连接失败自动降级为纯内存模式
// K线与实时快照使用互不重叠的键空间
type PriceCache struct {
	redisClient *redis.Client
	useRedis    bool

	mutex  sync.RWMutex
	memory map[string]memoryEntry

	cfg types.CacheConfig
}

// NewPriceCache 创建缓存
func NewPriceCache(redisConfig types.RedisConfig, cfg types.CacheConfig) *PriceCache {
	pc := &PriceCache{
		memory: make(map[string]memoryEntry),
		cfg:    cfg,
	}

	// 尝试连接Redis
	if redisConfig.URL != "" {
		pc.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := pc.redisClient.Ping(ctx).Result(); err != nil {
			zap.L().Warn("⚠️ Redis连接失败，使用纯内存模式", zap.Error(err))
			pc.useRedis = false
		} else {
			zap.L().Info("✅ Redis连接成功")
			pc.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，使用纯内存模式")
	}

	return pc
}

// KlineKey K线查询的缓存键
func KlineKey(market types.Market, symbol string, tf types.Timeframe, limit int) string {
	return fmt.Sprintf("kline:%s:%s:%s:%d", market, symbol, tf, limit)
}

// RealtimeKey 实时快照的缓存键
func RealtimeKey(market types.Market, symbol string) string {
	return fmt.Sprintf("realtime_price:%s:%s", market, symbol)
}

// KlineTTL 各周期K线的缓存时长
func (pc *PriceCache) KlineTTL(tf types.Timeframe) time.Duration {
	if ttl, ok := pc.cfg.KlineTTL[string(tf)]; ok && ttl > 0 {
		return ttl
	}
	if pc.cfg.DefaultTTL > 0 {
		return pc.cfg.DefaultTTL
	}
	return 300 * time.Second
}

// RealtimeTTL ticker与1m快照的缓存时长
func (pc *PriceCache) RealtimeTTL() time.Duration {
	if pc.cfg.RealtimeTTL > 0 {
		return pc.cfg.RealtimeTTL
	}
	return 30 * time.Second
}

// DailyTTL 日线快照的缓存时长
func (pc *PriceCache) DailyTTL() time.Duration {
	if pc.cfg.DailyTTL > 0 {
		return pc.cfg.DailyTTL
	}
	return 300 * time.Second
}

// Get 读取缓存并解析到out，未命中或已过期返回false
func (pc *PriceCache) Get(ctx context.Context, key string, out interface{}) bool {
	var raw []byte

	if pc.useRedis {
		data, err := pc.redisClient.Get(ctx, key).Bytes()
		if err != nil {
			return false
		}
		raw = data
	} else {
		pc.mutex.RLock()
		entry, ok := pc.memory[key]
		pc.mutex.RUnlock()
		if !ok || time.Now().After(entry.expiry) {
			return false
		}
		raw = entry.value
	}

	if err := gjson.Unmarshal(raw, out); err != nil {
		zap.L().Warn("⚠️ 缓存值解析失败，按未命中处理", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set 写入缓存
func (pc *PriceCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := gjson.Marshal(value)
	if err != nil {
		zap.L().Warn("⚠️ 缓存值序列化失败", zap.String("key", key), zap.Error(err))
		return
	}

	if pc.useRedis {
		if err := pc.redisClient.Set(ctx, key, raw, ttl).Err(); err != nil {
			zap.L().Warn("⚠️ Redis写入失败", zap.String("key", key), zap.Error(err))
		}
		return
	}

	pc.mutex.Lock()
	pc.memory[key] = memoryEntry{value: raw, expiry: time.Now().Add(ttl)}
	pc.mutex.Unlock()
}

// Delete 删除缓存项
func (pc *PriceCache) Delete(ctx context.Context, key string) {
	if pc.useRedis {
		pc.redisClient.Del(ctx, key)
		return
	}
	pc.mutex.Lock()
	delete(pc.memory, key)
	pc.mutex.Unlock()
}

// Cleanup 清理内存模式下已过期的缓存项
// Redis模式由服务端自行过期，无需清理
func (pc *PriceCache) Cleanup() {
	if pc.useRedis {
		return
	}
	now := time.Now()
	pc.mutex.Lock()
	for key, entry := range pc.memory {
		if now.After(entry.expiry) {
			delete(pc.memory, key)
		}
	}
	pc.mutex.Unlock()
}
