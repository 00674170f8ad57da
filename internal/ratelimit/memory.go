package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jun/gophdeck/internal/deckerr"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. Expired windows are
// replaced on read and removed by the optional sweeper started with Start.
type MemoryLimiter struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(cfg Config, logger *zap.Logger) *MemoryLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLimiter{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.windows[key] = w
	}
	if w.count >= l.cfg.Limit {
		return deckerr.RateLimit(key, retrySeconds(w.resetAt.Sub(now)))
	}
	w.count++
	return nil
}

// Start sweeps expired windows every Window until ctx is done.
func (l *MemoryLimiter) Start(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.logger.Debug("rate limit windows swept", zap.Int("removed", n))
				}
			}
		}
	}()
}

// Sweep drops expired windows and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
