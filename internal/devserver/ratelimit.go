package devserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter rate-limits login attempts per client IP.
type loginLimiter struct {
	mu    sync.Mutex
	ips   map[string]*rate.Limiter
	rps   rate.Limit
	burst int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newLoginLimiter(rps float64, burst int) *loginLimiter {
	l := &loginLimiter{
		ips:   make(map[string]*rate.Limiter),
		rps:   rate.Limit(rps),
		burst: burst,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *loginLimiter) allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.ips[ip]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.ips[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// close stops the cleanup goroutine. Safe to call more than once.
func (l *loginLimiter) close() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// cleanup periodically resets the map so drive-by IPs don't accumulate.
// Active clients simply get a fresh limiter on their next attempt.
func (l *loginLimiter) cleanup() {
	defer close(l.done)
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.ips = make(map[string]*rate.Limiter)
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
