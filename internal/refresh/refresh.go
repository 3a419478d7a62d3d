// Package refresh reloads the sources on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "dietcal/internal/log"
)

// Func performs one reload. It should return once the reload is done.
type Func func(ctx context.Context)

// Scheduler runs a Func on a standard five-field cron spec. Overlapping
// runs are skipped.
type Scheduler struct {
	cron *cron.Cron
	spec string

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("refresh: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("refresh: "+msg, err, kv...)
}

// Validate reports whether spec is a usable five-field cron expression.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}
	return nil
}

// New builds a Scheduler evaluating spec in loc.
func New(spec string, loc *time.Location, fn Func) (*Scheduler, error) {
	if fn == nil {
		return nil, fmt.Errorf("refresh: nil refresh func")
	}
	if err := Validate(spec); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{spec: spec}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.run(fn) }); err != nil {
		return nil, fmt.Errorf("refresh: schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run(fn Func) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	start := time.Now()
	appLog.Debug("refresh: reloading sources")
	fn(ctx)
	appLog.Info("refresh: sources reloaded", "duration", time.Since(start).Round(time.Millisecond))
}

// Start begins running the schedule. Runs in progress see ctx canceled
// once it is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	appLog.Info("refresh scheduler started", "schedule", s.spec, "next", s.Next())
}

// Stop halts the schedule and waits for a run in progress to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
