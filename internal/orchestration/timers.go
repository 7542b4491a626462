package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Timers drives the engine's five periodic ticks off a single
// cron.Cron instance, each guarded by a non-reentrant atomic.Bool so a
// slow tick is skipped rather than piled up (spec.md §5).
type Timers struct {
	cron   *cron.Cron
	engine *Engine

	scheduling atomic.Bool
	watchdog   atomic.Bool
	heartbeat  atomic.Bool
	cleanup    atomic.Bool
	metrics    atomic.Bool

	onSnapshot func(MetricsSnapshot)
}

// NewTimers builds a Timers bound to engine. onSnapshot, if non-nil, is
// invoked with the per-minute metrics snapshot.
func NewTimers(engine *Engine, onSnapshot func(MetricsSnapshot)) *Timers {
	return &Timers{
		cron:       cron.New(cron.WithSeconds()),
		engine:     engine,
		onSnapshot: onSnapshot,
	}
}

// Start registers all five ticks and starts the cron scheduler.
func (t *Timers) Start(ctx context.Context) error {
	specs := []struct {
		interval string
		guard    *atomic.Bool
		run      func(context.Context)
	}{
		{everySpec(t.engine.cfg.SchedulingInterval), &t.scheduling, t.engine.RunSchedulingTick},
		{everySpec(t.engine.cfg.WatchdogInterval), &t.watchdog, func(context.Context) { t.engine.RunWatchdogTick() }},
		{everySpec(t.engine.cfg.HeartbeatInterval), &t.heartbeat, func(context.Context) { t.engine.RunHeartbeatTick() }},
		{everySpec(t.engine.cfg.CleanupInterval), &t.cleanup, func(context.Context) { t.engine.RunCleanupTick() }},
		{"@every 1m", &t.metrics, func(context.Context) {
			if t.onSnapshot != nil {
				t.onSnapshot(t.engine.Snapshot())
			}
		}},
	}
	for _, s := range specs {
		guard := s.guard
		run := s.run
		_, err := t.cron.AddFunc(s.interval, func() {
			if !guard.CompareAndSwap(false, true) {
				return // previous tick still running, skip this one
			}
			defer guard.Store(false)
			run(ctx)
		})
		if err != nil {
			return fmt.Errorf("orchestration: register timer %q: %w", s.interval, err)
		}
	}
	t.cron.Start()
	return nil
}

// Stop stops the cron scheduler, waiting for in-flight ticks to drain.
func (t *Timers) Stop() context.Context {
	return t.cron.Stop()
}

func everySpec(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("@every %ds", secs)
}
