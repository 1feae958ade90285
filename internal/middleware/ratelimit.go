package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/user/moodflix/internal/config"
	"github.com/user/moodflix/internal/utils"
)

// NewRedisClient 创建 Redis 客户端并检查连通性
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Redis] 已连接 %s", cfg.Addr)
	return client, nil
}

// RateLimiter 基于 Redis 的固定窗口限流
type RateLimiter struct {
	rdb     redis.Cmdable
	prefix  string
	maxReqs int
	window  time.Duration
}

// NewRateLimiter rdb 为 nil 时不限流
func NewRateLimiter(rdb redis.Cmdable, prefix string, maxReqs int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix, maxReqs: maxReqs, window: window}
}

// Handler 按登录用户或客户端 IP 计数，Redis 异常时放行
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rdb == nil {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if uid := GetUserID(c); uid > 0 {
			subject = "user:" + strconv.Itoa(uid)
		}
		key := fmt.Sprintf("ratelimit:%s:%s", rl.prefix, subject)
		ctx := c.Request.Context()

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("[RateLimit] Redis 不可用，放行: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.rdb.Expire(ctx, key, rl.window)
		}

		ttl, _ := rl.rdb.TTL(ctx, key).Result()
		if ttl < 0 {
			ttl = rl.window
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxReqs))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(rl.maxReqs)-count), 10))
		h.Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > int64(rl.maxReqs) {
			h.Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			utils.ErrorWithData(c, http.StatusTooManyRequests, "Rate limit exceeded", gin.H{
				"retryAfter": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
