package restapi

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"buswisely.org/internal/app"
	"buswisely.org/internal/clock"
	"buswisely.org/internal/logging"
	"buswisely.org/internal/models"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleAfter     = 10 * time.Minute
	// zeroRateRetryAfter is advertised when the configured rate admits nothing.
	zeroRateRetryAfter = time.Hour
)

// clientBucket is one client's token bucket and when it last asked for a token.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles the guarded API endpoints per client. A client is its
// API key when the request carries one and its remote address otherwise, so
// one key shared across addresses draws from a single bucket.
//
// A rate of zero admits no requests; a negative rate admits all of them.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	exempt map[string]struct{}
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[string]*clientBucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows perInterval requests per interval for each client,
// with bursts of the same size, and starts the idle-bucket sweeper.
func NewRateLimiter(perInterval int, interval time.Duration, exemptKeys []string, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.RealClock{}
	}

	var limit rate.Limit
	switch {
	case perInterval < 0:
		limit = rate.Inf
	case perInterval == 0:
		limit = 0
	default:
		limit = rate.Every(interval / time.Duration(perInterval))
	}

	exempt := make(map[string]struct{}, len(exemptKeys))
	for _, key := range exemptKeys {
		if key = strings.TrimSpace(key); key != "" {
			exempt[key] = struct{}{}
		}
	}

	rl := &RateLimiter{
		limit:   limit,
		burst:   max(perInterval, 0),
		exempt:  exempt,
		clock:   clk,
		buckets: make(map[string]*clientBucket),
		stop:    make(chan struct{}),
	}
	go rl.sweep(limiterSweepInterval)
	return rl
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := app.RequestAPIKey(r)
		if _, ok := rl.exempt[key]; ok {
			next.ServeHTTP(w, r)
			return
		}

		client := key
		if client == "" {
			client = "ip:" + clientIP(r)
		}

		if retryAfter, allowed := rl.take(client); !allowed {
			logging.FromContext(r.Context()).Debug("rate limit exceeded",
				slog.Bool("keyed", key != ""),
				slog.Duration("retry_after", retryAfter))
			rl.reject(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take spends one token from client's bucket. When none is available it
// reports how long until one will be.
func (rl *RateLimiter) take(client string) (time.Duration, bool) {
	now := rl.clock.Now()

	rl.mu.Lock()
	bucket, ok := rl.buckets[client]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[client] = bucket
	}
	bucket.lastSeen = now
	rl.mu.Unlock()

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return zeroRateRetryAfter, false
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return delay, false
	}
	return 0, true
}

func (rl *RateLimiter) reject(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	response := models.NewResponse(http.StatusTooManyRequests, nil, "Rate limit exceeded. Please try again later.", rl.clock)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode rate limit response", "error", err)
	}
}

// clientIP is the host part of RemoteAddr. Forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// evictIdle drops buckets that have not been used for limiterIdleAfter.
func (rl *RateLimiter) evictIdle() {
	cutoff := rl.clock.Now().Add(-limiterIdleAfter)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, bucket := range rl.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.buckets, client)
		}
	}
}

// tracked is the number of clients currently holding a bucket.
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
