package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
)

// DefaultSweepInterval is how often expired records are purged.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically purges expired records from a limiter's store.
type Sweeper struct {
	limiter  *Limiter
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
}

// NewSweeper returns a stopped sweeper. A non-positive interval falls back to
// DefaultSweepInterval.
func NewSweeper(limiter *Limiter, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		limiter:  limiter,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(runCtx)

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Rate limit sweeper started",
			zap.Duration("interval", s.interval))
	}
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Rate limit sweeper stopped")
	}
}

// SweepOnce runs a single purge and reports how many records were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	removed, err := s.limiter.Sweep(ctx)
	metrics.RecordSweep(removed, err == nil)
	if err != nil {
		if observability.ServerLogger != nil && ctx.Err() == nil {
			observability.ServerLogger.Error("Rate limit sweep failed", zap.Error(err))
		}
		return removed, err
	}

	if admin, ok := s.limiter.Store.(Admin); ok {
		if tracked, lenErr := admin.Len(ctx); lenErr == nil {
			metrics.SetTrackedKeys(tracked)
		}
	}

	if removed > 0 && observability.ServerLogger != nil {
		observability.ServerLogger.Debug("Rate limit sweep completed",
			zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, s.interval)
			_, _ = s.SweepOnce(sweepCtx)
			cancel()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
