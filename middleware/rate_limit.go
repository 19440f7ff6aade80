package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dishevent/dishevent-server/response"
)

// One limiter per client IP, plus lastSeen for cleanup.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps a token bucket per IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	reqPerMin int
	burst     int
	ttl       time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter: reqPerMin request/phút, IP không hoạt động quá ttl bị xoá.
func NewIPRateLimiter(reqPerMin, burst int, ttl time.Duration) *IPRateLimiter {
	rl := &IPRateLimiter{
		visitors:  make(map[string]*visitor),
		reqPerMin: reqPerMin,
		burst:     burst,
		ttl:       ttl,
		stop:      make(chan struct{}),
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

func (rl *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.visitors[ip]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}

	rps := float64(rl.reqPerMin) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), rl.burst)
	rl.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (rl *IPRateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *IPRateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, ip)
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func RateLimitByIP(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			response.Abort(c, response.ErrCodeTooManyRequests, "too many requests, try again in a few minutes")
			return
		}
		c.Next()
	}
}

// Limiters groups the per-endpoint limiters.
type Limiters struct {
	Session *IPRateLimiter
	Unlock  *IPRateLimiter
	RSVP    *IPRateLimiter
	Upload  *IPRateLimiter
}

func NewLimiters() *Limiters {
	return &Limiters{
		Session: NewIPRateLimiter(30, 10, 10*time.Minute),
		// password guesses stay expensive
		Unlock: NewIPRateLimiter(5, 3, 15*time.Minute),
		RSVP:   NewIPRateLimiter(10, 5, 10*time.Minute),
		Upload: NewIPRateLimiter(30, 10, 10*time.Minute),
	}
}

func (l *Limiters) Stop() {
	for _, rl := range []*IPRateLimiter{l.Session, l.Unlock, l.RSVP, l.Upload} {
		if rl != nil {
			rl.Stop()
		}
	}
}
