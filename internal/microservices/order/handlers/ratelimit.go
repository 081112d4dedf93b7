package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tableside/internal/common/logger"
)

// IPLimiter throttles requests per client address. Idle entries are dropped
// after an hour.
type IPLimiter struct {
	limit rate.Limit
	burst int
	log   *logger.Logger

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

const clientIdle = time.Hour

func NewIPLimiter(perSecond float64, burst int, lg *logger.Logger) *IPLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &IPLimiter{limit: rate.Limit(perSecond), burst: burst, log: lg, clients: make(map[string]*client)}
}

func (l *IPLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.clients {
		if now.Sub(c.seen) > clientIdle {
			delete(l.clients, k)
		}
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip, time.Now()) {
			l.log.Warn("rate_limited", map[string]any{"ip": ip, "path": r.URL.Path})
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
