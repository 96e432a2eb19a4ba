// internal/api/ratelimit.go
package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Corphon/PersonaMarket/internal/utils"
)

// RateLimitResult 一次计数后的窗口状态
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimitStore 固定窗口计数存储
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// visitor 单个客户端在当前窗口内的计数
type visitor struct {
	remaining int
	reset     time.Time
}

// MemoryRateLimiter 进程内固定窗口计数，单实例部署使用
type MemoryRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryRateLimiter 创建内存限流器并启动过期清理
func NewMemoryRateLimiter(cleanupInterval time.Duration) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{
		visitors: make(map[string]*visitor),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go rl.cleanup(cleanupInterval)
	}
	return rl
}

// cleanup 定期删除窗口已过期的记录
func (rl *MemoryRateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, v := range rl.visitors {
				if now.After(v.reset) {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Close 停止清理协程
func (rl *MemoryRateLimiter) Close() error {
	rl.stopOnce.Do(func() { close(rl.stop) })
	return nil
}

func (rl *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || now.After(v.reset) {
		v = &visitor{remaining: limit, reset: now.Add(window)}
		rl.visitors[key] = v
	}

	res := RateLimitResult{Limit: limit, Reset: v.reset}
	if v.remaining <= 0 {
		return res, nil
	}
	v.remaining--
	res.Allowed = true
	res.Remaining = v.remaining
	return res, nil
}

// RedisRateLimiter 多实例共享计数：INCR + PEXPIRE
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimiter 从 redis:// URL 创建限流器
func NewRedisRateLimiter(ctx context.Context, redisURL string) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRateLimiter{client: client, prefix: "persona:ratelimit:"}, nil
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	k := rl.prefix + key

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit incr: %w", err)
	}

	ttl := pttl.Val()
	if incr.Val() == 1 || ttl < 0 {
		// 新窗口
		if err := rl.client.PExpire(ctx, k, window).Err(); err != nil {
			return RateLimitResult{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = window
	}

	count := int(incr.Val())
	res := RateLimitResult{
		Allowed: count <= limit,
		Limit:   limit,
		Reset:   time.Now().Add(ttl),
	}
	if res.Allowed {
		res.Remaining = limit - count
	}
	return res, nil
}

func (rl *RedisRateLimiter) Close() error {
	return rl.client.Close()
}

// RateLimitMiddleware 按 keyFunc 限流；存储出错时放行并记录日志
func RateLimitMiddleware(store RateLimitStore, scope string, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *utils.Logger) gin.HandlerFunc {
	response := NewResponseHelper()
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		res, err := store.Allow(c.Request.Context(), scope+":"+keyFunc(c), limit, window)
		if err != nil {
			logger.Warn("rate limit store unavailable, allowing request", utils.Fields{"scope": scope, "error": err.Error()})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Allowed {
			response.TooManyRequests(c, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitByIP 按客户端 IP 限流
func RateLimitByIP(store RateLimitStore, scope string, limit int, window time.Duration, logger *utils.Logger) gin.HandlerFunc {
	return RateLimitMiddleware(store, scope, limit, window, func(c *gin.Context) string {
		return c.ClientIP()
	}, logger)
}
