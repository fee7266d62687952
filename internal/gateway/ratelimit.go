package gateway

import (
	"net"
	"sync"
	"time"
)

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter tracks failed auth attempts per host.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

func newAuthRateLimiter() *authRateLimiter {
	l := &authRateLimiter{
		failures: make(map[string][]time.Time),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go l.periodicCleanup(time.Minute)
	return l
}

func (l *authRateLimiter) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *authRateLimiter) periodicCleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			for host := range l.failures {
				l.pruneLocked(host)
			}
			l.mu.Unlock()
		}
	}
}

// pruneLocked drops failures older than the window and returns how many remain.
func (l *authRateLimiter) pruneLocked(host string) int {
	cutoff := l.now().Add(-authRateWindow)
	recent := l.failures[host]
	kept := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return 0
	}
	l.failures[host] = kept
	return len(kept)
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked(host) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, tracked := l.failures[host]; !tracked && len(l.failures) >= authRateMaxIPs {
		l.evictOldestLocked()
	}
	l.failures[host] = append(l.failures[host], l.now())
}

func (l *authRateLimiter) evictOldestLocked() {
	var oldestHost string
	var oldest time.Time
	for host, times := range l.failures {
		if len(times) > 0 && (oldestHost == "" || times[0].Before(oldest)) {
			oldestHost, oldest = host, times[0]
		}
	}
	if oldestHost != "" {
		delete(l.failures, oldestHost)
	}
}

func hostOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
