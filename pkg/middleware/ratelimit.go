package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitStrategy identifies how clients are keyed for rate limiting.
type RateLimitStrategy string

const (
	// StrategyIP keys clients by their IP address.
	StrategyIP RateLimitStrategy = "ip"

	// StrategyUser keys clients by the authenticated user ID, falling back to IP.
	StrategyUser RateLimitStrategy = "user"

	// StrategyCustom keys clients with RateLimitConfig.KeyExtractor.
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket.
	// Stages sharing a BucketName and a limiter share the same budget.
	BucketName string

	// Maximum number of requests allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	// Strategy for identifying clients
	Strategy RateLimitStrategy

	// Custom key extractor, used when Strategy is StrategyCustom
	KeyExtractor func(*common.Request) (string, error)
}

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	// Allow reports whether the request is allowed, the number of remaining
	// requests and the time until the next request would be allowed.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// DefaultMaxBuckets bounds the number of client buckets a TokenBucketLimiter keeps.
const DefaultMaxBuckets = 10000

// TokenBucketLimiter implements RateLimiter with one token bucket per key.
// Buckets are kept in an LRU cache so that idle clients are eventually evicted.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewTokenBucketLimiter creates a limiter holding at most maxBuckets buckets.
func NewTokenBucketLimiter(maxBuckets int) *TokenBucketLimiter {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	buckets, err := lru.New[string, *rate.Limiter](maxBuckets)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &TokenBucketLimiter{buckets: buckets}
}

func (l *TokenBucketLimiter) bucket(key string, limit int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	l.buckets.Add(key, b)
	return b
}

// Allow takes one token from the bucket of key without blocking.
func (l *TokenBucketLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}

	b := l.bucket(key, limit, window)
	now := time.Now()
	interval := window / time.Duration(limit)

	if !b.AllowN(now, 1) {
		missing := 1 - b.TokensAt(now)
		return false, 0, time.Duration(missing * float64(interval))
	}

	remaining := int(b.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, interval
}

type rateLimit struct {
	config  *RateLimitConfig
	limiter RateLimiter
	logger  *zap.Logger
}

// RateLimit returns a request stage that rejects requests over the configured
// limit with 429 Too Many Requests. A nil config disables the stage.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) common.RequestHandler {
	if limiter == nil {
		limiter = NewTokenBucketLimiter(DefaultMaxBuckets)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rateLimit{config: config, limiter: limiter, logger: logger}
}

func (rl *rateLimit) Name() string { return "rate-limit" }

func (rl *rateLimit) Handle(ctx common.Context, req *common.Request) {
	if rl.config == nil {
		ctx.Next(req)
		return
	}

	key, err := rl.key(req)
	if err != nil {
		ctx.Error(req, err)
		return
	}

	allowed, remaining, reset := rl.limiter.Allow(rl.config.BucketName+":"+key, rl.config.Limit, rl.config.Window)
	if allowed {
		ctx.Next(req)
		return
	}

	rl.logger.Warn("Rate limit exceeded",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("key", key),
		zap.Int("limit", rl.config.Limit),
	)

	retryAfter := int64(reset / time.Second)
	if reset%time.Second != 0 {
		retryAfter++
	}
	resp := common.MustErrorResponse(http.StatusTooManyRequests, "Too Many Requests").
		WithBody([]byte("Too Many Requests")).
		WithHeader("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit)).
		WithHeader("X-RateLimit-Remaining", strconv.Itoa(remaining)).
		WithHeader("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10)).
		WithHeader("Retry-After", strconv.FormatInt(retryAfter, 10))
	ctx.Send(req, resp)
}

func (rl *rateLimit) key(req *common.Request) (string, error) {
	switch rl.config.Strategy {
	case StrategyUser:
		if id := UserID(req); id != "" {
			return id, nil
		}
	case StrategyCustom:
		if rl.config.KeyExtractor != nil {
			return rl.config.KeyExtractor(req)
		}
	}
	return ClientIP(req), nil
}
