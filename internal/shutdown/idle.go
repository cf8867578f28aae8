// Package shutdown provides idle monitoring for scale-to-zero deployments.
// Platforms like Fly.io stop machines that report themselves idle; the
// monitor tracks request activity and signals when the server has served
// nothing but probes for the configured duration.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// IdleMonitor tracks request activity and closes its shutdown channel when
// the server has been idle past the timeout. A timeout of zero disables it.
type IdleMonitor struct {
	timeout      time.Duration
	excludePaths []string
	logger       *slog.Logger

	activeRequests int64
	mu             sync.Mutex
	lastActivity   time.Time

	shutdownChan chan struct{}
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewIdleMonitor creates an idle monitor. excludePaths are URL prefixes
// that do not count as activity (health probes keep machines alive
// otherwise).
func NewIdleMonitor(timeout time.Duration, excludePaths []string, logger *slog.Logger) *IdleMonitor {
	return &IdleMonitor{
		timeout:      timeout,
		excludePaths: excludePaths,
		logger:       logger,
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
		stopChan:     make(chan struct{}),
	}
}

// Start begins idle monitoring. No-op when the timeout is zero.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop stops the idle monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// ShutdownChan is closed once the idle timeout is reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware tracks request activity. Excluded paths pass through without
// touching the activity clock.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.excluded(r.URL.Path) {
			atomic.AddInt64(&m.activeRequests, 1)
			m.touch()
			defer func() {
				atomic.AddInt64(&m.activeRequests, -1)
				m.touch()
			}()
		}
		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) excluded(path string) bool {
	for _, p := range m.excludePaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if atomic.LoadInt64(&m.activeRequests) > 0 {
				continue
			}
			m.mu.Lock()
			idle := time.Since(m.lastActivity)
			m.mu.Unlock()
			if idle >= m.timeout {
				m.logger.Info("idle timeout reached, signaling shutdown", "idle", idle)
				close(m.shutdownChan)
				return
			}
		}
	}
}
