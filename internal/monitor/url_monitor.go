package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/repository"
)

// URLMonitor periodically checks whether saved bookmarks still resolve.
// It keeps the previous state per record and logs transitions, so a target
// going dark shows up once instead of on every sweep.
type URLMonitor struct {
	urlRepo     repository.URLRepository
	interval    time.Duration
	knownStates map[uint]bool
	mu          sync.Mutex
	httpClient  *http.Client
	log         logger.Logger
}

// NewURLMonitor returns a monitor sweeping at the given interval.
func NewURLMonitor(urlRepo repository.URLRepository, interval time.Duration, log logger.Logger) *URLMonitor {
	return &URLMonitor{
		urlRepo:     urlRepo,
		interval:    interval,
		knownStates: make(map[uint]bool),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// Start runs the monitoring loop until ctx is cancelled. An immediate sweep
// runs before the first tick.
func (m *URLMonitor) Start(ctx context.Context) {
	m.log.Info("starting bookmark monitor", logger.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.checkBookmarks(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("bookmark monitor stopped")
			return
		case <-ticker.C:
			m.checkBookmarks(ctx)
		}
	}
}

func (m *URLMonitor) checkBookmarks(ctx context.Context) {
	urls, err := m.urlRepo.ListActive(ctx)
	if err != nil {
		m.log.Error("failed to load bookmarks for monitoring", logger.Error(err))
		return
	}

	for _, u := range urls {
		current := m.isReachable(ctx, u.Target)

		m.mu.Lock()
		previous, seen := m.knownStates[u.ID]
		m.knownStates[u.ID] = current
		m.mu.Unlock()

		if !seen {
			m.log.Debug("initial bookmark state",
				logger.Uint("id", u.ID),
				logger.String("url", u.Target),
				logger.String("state", formatState(current)))
			continue
		}
		if current != previous {
			m.log.Warn("bookmark availability changed",
				logger.Uint("id", u.ID),
				logger.String("url", u.Target),
				logger.String("from", formatState(previous)),
				logger.String("to", formatState(current)))
		}
	}
}

// isReachable issues a HEAD request; 2xx and 3xx count as reachable.
func (m *URLMonitor) isReachable(ctx context.Context, target string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func formatState(reachable bool) string {
	if reachable {
		return "reachable"
	}
	return "unreachable"
}
