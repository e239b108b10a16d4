package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps one token bucket per client in process memory.
type MemoryLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter starts a janitor that evicts clients idle for ttl; call
// Close to stop it.
func NewMemoryLimiter(rps float64, burst int, ttl time.Duration) *MemoryLimiter {
	rl := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evict(time.Now())
		}
	}
}

func (rl *MemoryLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, key)
		}
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

func (rl *MemoryLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window, now: time.Now}
}

func (rl *RedisLimiter) key(client string) string {
	slot := rl.now().UnixNano() / int64(rl.window)
	return "ratelimit:" + client + ":" + strconv.FormatInt(slot, 10)
}

func (rl *RedisLimiter) Allow(ctx context.Context, client string) (bool, error) {
	key := rl.key(client)
	n, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= rl.limit, nil
}

// FallbackLimiter consults primary and switches to secondary for a request
// when primary errors.
type FallbackLimiter struct {
	Primary   Limiter
	Secondary Limiter
}

func (f FallbackLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := f.Primary.Allow(ctx, key)
	if err == nil {
		return ok, nil
	}
	logger.Warn("rate limiter unavailable, using local limits", logger.FieldError, err)
	return f.Secondary.Allow(ctx, key)
}

func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// fail open
			logger.Error("rate limit check failed", logger.FieldError, err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
