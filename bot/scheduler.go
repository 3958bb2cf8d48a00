package bot

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultRepeatSweep = 5 * time.Second
	defaultOnceSweep   = 60 * time.Second
)

type repeatTask struct {
	action   func()
	interval time.Duration
	lastRan  time.Time
}

type onceTask struct {
	action func()
	at     time.Time
}

// Scheduler owns the two per-instance task queues: a fixed-interval repeater
// and a one-shot date-scheduled queue. Each queue is driven by its own sweep
// loop and can be reset independently. The clock is injectable so sweeps are
// testable without real timers.
type Scheduler struct {
	logger      *slog.Logger
	now         func() time.Time
	repeatSweep time.Duration
	onceSweep   time.Duration

	mu         sync.Mutex
	started    bool
	repeats    []*repeatTask
	onces      []*onceTask
	repeatStop chan struct{}
	onceStop   chan struct{}
}

func NewScheduler(logger *slog.Logger, repeatSweep, onceSweep time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if repeatSweep <= 0 {
		repeatSweep = defaultRepeatSweep
	}
	if onceSweep <= 0 {
		onceSweep = defaultOnceSweep
	}
	return &Scheduler{
		logger:      logger,
		now:         time.Now,
		repeatSweep: repeatSweep,
		onceSweep:   onceSweep,
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.repeatStop = make(chan struct{})
	s.onceStop = make(chan struct{})
	go s.runSweep(s.repeatStop, s.repeatSweep, s.sweepRepeats)
	go s.runSweep(s.onceStop, s.onceSweep, s.sweepOnces)
}

// Stop cancels both sweep loops and clears both queues. Safe to call more
// than once; already-running actions complete on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.repeatStop)
	close(s.onceStop)
	s.repeats = nil
	s.onces = nil
}

// AddRepeat registers a recurring task. The task first becomes eligible one
// full interval after registration.
func (s *Scheduler) AddRepeat(action func(), interval time.Duration) error {
	if action == nil {
		return fmt.Errorf("scheduler action is required")
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeats = append(s.repeats, &repeatTask{
		action:   action,
		interval: interval,
		lastRan:  s.now(),
	})
	return nil
}

// AddOnce registers a one-shot task. A zero or past fire time is rejected
// here rather than silently dropped at sweep time.
func (s *Scheduler) AddOnce(action func(), at time.Time) error {
	if action == nil {
		return fmt.Errorf("scheduler action is required")
	}
	if at.IsZero() {
		return fmt.Errorf("scheduler fire time is required")
	}
	if !at.After(s.now()) {
		return fmt.Errorf("scheduler fire time %s is in the past", at.Format(time.RFC3339))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onces = append(s.onces, &onceTask{action: action, at: at})
	return nil
}

// ResetRepeats cancels the repeater sweep, clears its queue, and restarts the
// sweep. Used when external state the tasks depend on is torn down.
func (s *Scheduler) ResetRepeats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeats = nil
	if !s.started {
		return
	}
	close(s.repeatStop)
	s.repeatStop = make(chan struct{})
	go s.runSweep(s.repeatStop, s.repeatSweep, s.sweepRepeats)
}

func (s *Scheduler) ResetOnces() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onces = nil
	if !s.started {
		return
	}
	close(s.onceStop)
	s.onceStop = make(chan struct{})
	go s.runSweep(s.onceStop, s.onceSweep, s.sweepOnces)
}

func (s *Scheduler) runSweep(stop chan struct{}, period time.Duration, sweep func(now time.Time)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sweep(s.now())
		}
	}
}

func (s *Scheduler) sweepRepeats(now time.Time) {
	s.mu.Lock()
	var due []func()
	for _, t := range s.repeats {
		if now.Sub(t.lastRan) >= t.interval {
			t.lastRan = now
			due = append(due, t.action)
		}
	}
	s.mu.Unlock()

	for _, action := range due {
		s.runAction(action)
	}
}

func (s *Scheduler) sweepOnces(now time.Time) {
	s.mu.Lock()
	var due []func()
	remaining := s.onces[:0]
	for _, t := range s.onces {
		if now.Before(t.at) {
			remaining = append(remaining, t)
			continue
		}
		due = append(due, t.action)
	}
	s.onces = remaining
	s.mu.Unlock()

	for _, action := range due {
		s.runAction(action)
	}
}

// runAction keeps a panicking task from killing the sweep loop.
func (s *Scheduler) runAction(action func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("scheduler_task_panic", "panic", fmt.Sprint(r))
		}
	}()
	action()
}

func (s *Scheduler) repeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.repeats)
}

func (s *Scheduler) onceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.onces)
}
