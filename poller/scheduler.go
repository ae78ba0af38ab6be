package poller

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-buildhealth/core"
)

// CycleRunner is the unit the scheduler fires; satisfied by *Poller.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Scheduler fires poll cycles at a jittered interval. Cycles are
// single-flight: a tick that lands while a cycle is still running is
// dropped, never queued.
type Scheduler struct {
	Runner CycleRunner
	Config core.PollerConfig
	Logger core.Logger

	// Rand drives jitter; overridable so tests are deterministic.
	Rand *rand.Rand

	mu      sync.Mutex
	running bool
	dropped int
}

func NewScheduler(runner CycleRunner, cfg core.PollerConfig, logger core.Logger) *Scheduler {
	return &Scheduler{
		Runner: runner,
		Config: cfg,
		Logger: glog.Ensure(logger),
	}
}

// Run blocks, firing cycles until ctx is cancelled. On cancellation an
// in-flight cycle gets the configured grace period to finish before Run
// returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.Runner == nil {
		return fmt.Errorf("poller: scheduler requires a cycle runner")
	}
	interval := s.Config.Interval()
	if interval <= 0 {
		return core.NewConfigurationError("poller: scheduler interval must be positive", nil)
	}

	var inflight sync.WaitGroup
	timer := time.NewTimer(s.nextDelay(interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.drain(&inflight)
		case <-timer.C:
		}

		if s.tryAcquire() {
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer s.release()
				if _, err := s.Runner.RunCycle(ctx); err != nil && ctx.Err() == nil {
					s.logger().Error("poll cycle failed", "error", err)
				}
			}()
		} else {
			s.noteDropped()
			s.logger().Warn("poll tick dropped, previous cycle still running")
		}

		timer.Reset(s.nextDelay(interval))
	}
}

// RunOnce fires a single cycle immediately, honoring single-flight.
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, error) {
	if s == nil || s.Runner == nil {
		return CycleReport{}, fmt.Errorf("poller: scheduler requires a cycle runner")
	}
	if !s.tryAcquire() {
		return CycleReport{}, core.NewConflictError("poller: a poll cycle is already running", nil)
	}
	defer s.release()
	return s.Runner.RunCycle(ctx)
}

// Dropped reports how many ticks were discarded because a cycle was
// still in flight.
func (s *Scheduler) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// nextDelay is the interval plus a uniform jitter in
// [-jitter, +jitter], floored at a quarter interval so a large jitter
// can never fire near-immediate ticks.
func (s *Scheduler) nextDelay(interval time.Duration) time.Duration {
	jitter := s.Config.Jitter()
	if jitter <= 0 {
		return interval
	}
	span := 2 * int64(jitter)
	offset := time.Duration(s.rng().Int63n(span)) - jitter
	delay := interval + offset
	if minDelay := interval / 4; delay < minDelay {
		delay = minDelay
	}
	return delay
}

func (s *Scheduler) drain(inflight *sync.WaitGroup) error {
	grace := s.Config.ShutdownGrace()
	if grace <= 0 {
		inflight.Wait()
		return nil
	}
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("poller: in-flight cycle did not finish within %s grace", grace)
	}
}

func (s *Scheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Scheduler) noteDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
}

func (s *Scheduler) rng() *rand.Rand {
	if s.Rand != nil {
		return s.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (s *Scheduler) logger() core.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return glog.Nop()
}
