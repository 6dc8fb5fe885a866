package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CycleFunc runs one reconciliation cycle
type CycleFunc func(ctx context.Context) error

// DelayRecorder is told which delay was chosen for the running cycle
type DelayRecorder interface {
	SetNextDelay(delay time.Duration)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration)

// Config holds the Scheduler settings
type Config struct {
	Cycle         CycleFunc
	UpdateTimeout time.Duration
	RetryTimeout  time.Duration
	Logger        *zap.Logger
	Recorder      DelayRecorder
	Sleep         SleepFunc
}

// Scheduler drives reconciliation cycles one at a time, forever.
//
// Each iteration runs the cycle and the inter-cycle delay concurrently and
// waits for both, so cycle starts are spaced by max(cycle duration, delay).
// The delay is chosen from the outcome of the previous cycle, which is known
// when the iteration starts: a failure therefore switches to the retry delay
// for the iteration after the failing one.
type Scheduler struct {
	cycle         CycleFunc
	updateTimeout time.Duration
	retryTimeout  time.Duration
	logger        *zap.Logger
	recorder      DelayRecorder
	sleep         SleepFunc

	// owned by the loop goroutine
	previousFailed bool
}

// New creates a Scheduler
func New(config Config) (*Scheduler, error) {
	if config.Cycle == nil {
		return nil, fmt.Errorf("cycle function is required")
	}
	if config.UpdateTimeout <= 0 {
		return nil, fmt.Errorf("update timeout must be positive")
	}
	if config.RetryTimeout <= 0 {
		return nil, fmt.Errorf("retry timeout must be positive")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Scheduler{
		cycle:         config.Cycle,
		updateTimeout: config.UpdateTimeout,
		retryTimeout:  config.RetryTimeout,
		logger:        logger,
		recorder:      config.Recorder,
		sleep:         sleep,
	}, nil
}

// Run loops until ctx is cancelled and then returns ctx.Err().
// Without cancellation it never returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		zap.Duration("update_timeout", s.updateTimeout),
		zap.Duration("retry_timeout", s.retryTimeout),
	)

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("Scheduler stopped", zap.Error(err))
			return err
		}
		s.iterate(ctx)
	}
}

// iterate runs one cycle alongside its delay and joins both
func (s *Scheduler) iterate(ctx context.Context) {
	delay := s.nextDelay()
	if s.recorder != nil {
		s.recorder.SetNextDelay(delay)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.runCycle(ctx)
	}()

	s.sleep(ctx, delay)
	err := <-done

	if err != nil {
		s.logger.Error("Cycle failed", zap.Error(err))
	}
	s.previousFailed = err != nil

	s.logger.Info("---------------------------------next update---------------------",
		zap.Duration("delay", delay),
	)
}

// nextDelay picks the delay from the previous outcome
func (s *Scheduler) nextDelay() time.Duration {
	if s.previousFailed {
		return s.retryTimeout
	}
	return s.updateTimeout
}

// runCycle converts a panic inside the cycle into a failure
func (s *Scheduler) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.cycle(ctx)
}

// sleepContext waits on a timer that is released on cancellation
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
