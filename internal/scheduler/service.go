package scheduler

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"payline/internal/eventbus"
	"payline/internal/gateway"
	"payline/internal/ledger"
	logx "payline/pkg/logx"
)

func New(cfg Config, store ledger.Store, exec gateway.Executor, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log.With(logx.String("comp", "scheduler")),
		store: store,
		exec:  exec,
		bus:   bus,
		// Standard 5-field specs plus descriptors like @hourly.
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply swaps the loop config at runtime. The new interval/spec takes effect
// at the next wake-up; no restart needed.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Debug("config applied",
		logx.Duration("interval", cfg.Interval),
		logx.String("poll_spec", cfg.PollSpec),
		logx.Bool("enabled", cfg.Enabled))
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start launches the poll loop. It is a no-op when already running; if a
// Stop() is still in progress, Start waits for it to finish first.
func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running (no stop in progress)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
			// loop and try again
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	s.stopCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	stopCh := s.stopCh
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in scheduler loop", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		s.run(runCtx, stopCh)
	}()

	s.log.Info("service started",
		logx.Duration("interval", s.intervalLocked()),
		logx.String("poll_spec", strings.TrimSpace(s.cfg.PollSpec)))
}

// Stop shuts the loop down, waiting up to ctx for the in-flight cycle.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	// finalize cleanup in background so Stop() can return on timeout safely.
	go func() {
		s.wg.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

// run executes one cycle immediately, then sleeps until the next trigger.
// No termination condition of its own: process lifetime bounds the loop.
func (s *Service) run(ctx context.Context, stopCh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if s.Enabled() {
			if _, err := s.RunCycle(ctx, time.Now()); err != nil {
				// Never fatal: pending state is re-read next cycle, so a
				// failed commit is retried then.
				s.log.Warn("cycle failed; retrying next cycle", logx.Err(err))
			}
		}

		wait := s.nextWait(time.Now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// nextWait computes the sleep until the next poll: cron spec when configured,
// fixed interval otherwise.
func (s *Service) nextWait(now time.Time) time.Duration {
	s.mu.Lock()
	spec := strings.TrimSpace(s.cfg.PollSpec)
	tz := strings.TrimSpace(s.cfg.Timezone)
	interval := s.intervalLocked()
	s.mu.Unlock()

	if spec == "" {
		return interval
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		s.log.Warn("invalid poll_spec; falling back to interval",
			logx.String("poll_spec", spec), logx.Err(err))
		return interval
	}
	loc := time.Local
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		}
	}
	next := sched.Next(now.In(loc))
	wait := time.Until(next)
	if wait <= 0 {
		wait = time.Second
	}
	return wait
}

func (s *Service) intervalLocked() time.Duration {
	if s.cfg.Interval > 0 {
		return s.cfg.Interval
	}
	return defaultInterval
}

func (s *Service) execTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ExecTimeout > 0 {
		return s.cfg.ExecTimeout
	}
	return defaultExecTimeout
}

// Snapshot reports loop state for the status endpoint.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Enabled:   s.cfg.Enabled,
		Running:   s.stopCh != nil && s.stopDone == nil,
		Interval:  s.intervalLocked().String(),
		PollSpec:  strings.TrimSpace(s.cfg.PollSpec),
		Cycles:    s.cycles,
		Completed: s.completed,
		Failed:    s.failed,
		LastCycle: s.lastCycle,
		LastError: s.lastErr,
	}
}
