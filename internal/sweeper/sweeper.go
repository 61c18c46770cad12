package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/devsel/internal/device"
)

// Detector runs one sweep.
type Detector interface {
	Detect(ctx context.Context) device.Result
}

// Pruner deletes history recorded before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Logger defines the logging interface used by the Sweeper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Sweeper.
type Config struct {
	Detector Detector

	// Interval between sweeps. Zero sweeps once at start and afterwards
	// only on Trigger.
	Interval time.Duration

	// Pruner and Retention are optional; both must be set to prune.
	Pruner    Pruner
	Retention time.Duration

	Logger Logger

	// Now overrides time.Now, mainly for tests.
	Now func() time.Time
}

// Sweeper schedules sweeps.
//
// Thread Safety:
//   - Trigger may be called from any goroutine.
//   - Sweeps never overlap; requests made while one runs coalesce into one.
type Sweeper struct {
	cfg     Config
	logger  Logger
	now     func() time.Time
	trigger chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a sweeper. Call Start to begin.
func New(cfg Config) *Sweeper {
	s := &Sweeper{
		cfg:     cfg,
		logger:  cfg.Logger,
		now:     cfg.Now,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start launches the sweep loop. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
// Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

// Trigger requests a sweep without blocking. It returns false when a
// request is already pending.
func (s *Sweeper) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.sweep(ctx, "start")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-tick:
			s.sweep(ctx, "interval")
		case <-s.trigger:
			s.sweep(ctx, "request")
		}
	}
}

// sweep runs one detection and prunes history.
func (s *Sweeper) sweep(ctx context.Context, reason string) {
	s.logger.Debug("sweep starting", "reason", reason)
	result := s.cfg.Detector.Detect(ctx)
	s.logger.Debug("sweep finished", "reason", reason, "sweep_id", result.ID)

	if s.cfg.Pruner == nil || s.cfg.Retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.cfg.Pruner.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Warn("pruning sweep history", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned sweep history", "removed", n, "before", cutoff)
	}
}
