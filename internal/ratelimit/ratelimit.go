// Package ratelimit throttles requests with a GCRA limiter stored in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

func PerMinute(n int) Limit { return Limit{Rate: n, Period: time.Minute, Burst: n} }

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds is the value for the Retry-After header, at least 1.
func (r *Result) RetryAfterSeconds() string {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

type RedisLimiter struct {
	limiter *redis_rate.Limiter
	prefix  string
}

func NewRedisLimiter(rdb redis.UniversalClient, prefix string) *RedisLimiter {
	return &RedisLimiter{limiter: redis_rate.NewLimiter(rdb), prefix: prefix}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// AllowAll never throttles. It stands in when Redis is not configured.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, string, Limit) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Middleware throttles by the key returned from keyFn. Limiter failures let the request through.
func Middleware(l Limiter, limit Limit, keyFn func(*gin.Context) string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), keyFn(c), limit)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfterSeconds())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please retry later"})
			return
		}
		c.Next()
	}
}

// ByClientIP keys requests by route and client address.
func ByClientIP(c *gin.Context) string {
	return c.FullPath() + ":" + c.ClientIP()
}
