package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

const (
	DefaultRateLimit = 5
	rateLimitWindow  = time.Second
)

// RateLimit caps requests per client IP in fixed one-second windows. Redis
// errors fail open.
func RateLimit(rdb *redis.Client, max int, log *zap.Logger) gin.HandlerFunc {
	if max <= 0 {
		max = DefaultRateLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("soma:rate_limit:%s:%s:%d", c.FullPath(), ip, time.Now().Unix())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > int64(max) {
			log.Info("rate limited", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "1")
			response.TooManyRequests(c)
			return
		}

		c.Next()
	}
}
