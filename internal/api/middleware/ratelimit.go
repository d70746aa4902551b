package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/phrazzld/miniminder/internal/api/shared"
)

// RejectionRecorder is told about every rejected request.
type RejectionRecorder interface {
	RateLimited()
}

// idleLimiterTTL is how long an unused per-client bucket is kept.
const idleLimiterTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	recorder  RejectionRecorder
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter allows each client rps requests per second with the given
// burst. recorder may be nil.
func NewRateLimiter(rps float64, burst int, recorder RejectionRecorder) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients:  make(map[string]*client),
		limit:    rate.Limit(rps),
		burst:    burst,
		recorder: recorder,
		now:      time.Now,
	}
}

// Handler rejects requests over the limit with 429 Too Many Requests.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			if l.recorder != nil {
				l.recorder.RateLimited()
			}
			w.Header().Set("Retry-After", "1")
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// clientIP strips the port from RemoteAddr, which chi's RealIP middleware
// has already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
