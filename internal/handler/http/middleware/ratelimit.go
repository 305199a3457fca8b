package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/handler/http/response"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// ipLimiter stores per-IP rate limiters
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(r rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

func (ipl *ipLimiter) getLimiter(ip string) *rate.Limiter {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	entry, exists := ipl.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(ipl.rate, ipl.burst)}
		ipl.limiters[ip] = entry
	}
	entry.lastSeen = ipl.now()
	return entry.limiter
}

// sweep drops limiters idle for longer than limiterIdleTTL
func (ipl *ipLimiter) sweep() {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	for ip, entry := range ipl.limiters {
		if ipl.now().Sub(entry.lastSeen) > limiterIdleTTL {
			delete(ipl.limiters, ip)
		}
	}
}

func (ipl *ipLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ipl.sweep()
		case <-ctx.Done():
			return
		}
	}
}

// RateLimit returns middleware that allows rps requests per second per client IP,
// with bursts up to burst. Idle limiters are swept until ctx is done.
// X-Forwarded-For is only read when trustProxy is set.
func RateLimit(ctx context.Context, rps float64, burst int, trustProxy bool) func(http.Handler) http.Handler {
	ipl := newIPLimiter(rate.Limit(rps), burst)
	go ipl.run(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ipl.getLimiter(clientIP(r, trustProxy)).Allow() {
				w.Header().Set("Retry-After", "1")
				response.TooManyRequests(w, "Too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys on the peer address. Behind a trusted proxy it takes the last
// X-Forwarded-For hop, the one appended by that proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
				return last
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
