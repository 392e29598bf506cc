package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more hit on key fits in limit per window. When
// it does not, retryAfter says how long until the next hit would.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (ok bool, retryAfter time.Duration, err error)
}

// RedisLimiter counts hits in fixed windows shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := l.now()
	slot := now.UnixNano() / int64(window)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if incr.Val() <= int64(limit) {
		return true, 0, nil
	}
	windowEnd := time.Unix(0, (slot+1)*int64(window))
	return false, windowEnd.Sub(now), nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is a per-process token bucket per key, used when no redis is
// configured.
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

// Idle buckets are swept once the map grows past this size.
const maxVisitors = 10000

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{visitors: make(map[string]*visitor), now: time.Now}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		if len(l.visitors) >= maxVisitors {
			l.sweep(now, window)
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *LocalLimiter) sweep(now time.Time, idle time.Duration) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, key)
		}
	}
}

// RateLimit allows limit requests per window per client IP on the routes it
// guards. Limiter failures let the request through.
func RateLimit(l Limiter, name string, limit int, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := name + ":" + c.ClientIP()
		ok, retryAfter, err := l.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limiter unavailable", "limit", name, "error", err)
			c.Next()
			return
		}
		if !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}
