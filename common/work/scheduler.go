package work

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cycle is one unit of scheduled work
type Cycle func(ctx context.Context) error

type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	// ShutdownGrace is how long an in-flight cycle may keep running after Run's
	// context is cancelled before its own context is cancelled too
	ShutdownGrace time.Duration
}

// Scheduler runs a cycle, sleeps for the interval, and repeats until its context ends.
// A failed cycle is logged and the next one runs after the usual interval.
type Scheduler struct {
	cycle   Cycle
	config  SchedulerConfig
	trigger chan struct{}
}

func NewScheduler(cycle Cycle, config SchedulerConfig) *Scheduler {
	return &Scheduler{
		cycle:   cycle,
		config:  config,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger asks for a cycle now instead of at the end of the current sleep.
// Requests made while one is already pending are merged; the return value
// reports whether this call queued a new one.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled and the in-flight cycle, if any, has returned
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().
		Dur("interval", s.config.Interval).
		Bool("runOnStart", s.config.RunOnStart).
		Msg("Scheduler started")
	defer log.Info().Msg("Scheduler stopped")

	if s.config.RunOnStart {
		s.runCycle(ctx)
	}

	timer := time.NewTimer(s.config.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
			log.Info().Msg("Sync cycle triggered")
		}

		if ctx.Err() != nil {
			return
		}
		s.runCycle(ctx)
		timer.Reset(s.config.Interval)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cycleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- s.cycle(cycleCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		log.Info().Dur("grace", s.config.ShutdownGrace).Msg("Waiting for in-flight sync cycle")
		grace := time.NewTimer(s.config.ShutdownGrace)
		select {
		case err = <-done:
		case <-grace.C:
			log.Warn().Msg("Sync cycle exceeded shutdown grace, cancelling")
			cancel()
			err = <-done
		}
		grace.Stop()
	}

	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Sync cycle failed")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Sync cycle finished")
}
