package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
)

const (
	cleanupInterval = 3 * time.Minute
	visitorTTL      = 10 * time.Minute
)

// LoginLimiter throttles login attempts per client IP. State lives in
// process memory and resets on restart.
type LoginLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows burst attempts immediately and refills one attempt
// per refill interval.
func NewLoginLimiter(burst int, refill time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(refill),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *LoginLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if time.Since(v.lastSeen) > visitorTTL {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine. The limiter stays usable; only the
// stale-visitor eviction ends. Safe to call more than once.
func (l *LoginLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow reports whether the IP may attempt a login now.
func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Throttle is the gin middleware form of the limiter.
func (l *LoginLimiter) Throttle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			abortProblem(c, problem.NewTooManyRequests("too many login attempts, try again later"))
			return
		}
		c.Next()
	}
}
