package scheduler

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is how often the background sync cycle runs.
const DefaultInterval = 30 * time.Second

// Target is what a scheduler drives once per tick.
type Target interface {
	SyncTick(ctx context.Context)
}

// Scheduler is the periodic driver for pull-and-reconcile plus queue drain.
// It owns the timer handle; the application shell owns Start/Stop.
type Scheduler struct {
	interval time.Duration
	target   Target
	visible  func() bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Scheduler)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithVisibility gates ticks on foreground visibility. When the gate reports
// false the tick is skipped; the next tick is unaffected.
func WithVisibility(fn func() bool) Option {
	return func(s *Scheduler) { s.visible = fn }
}

func New(target Target, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: DefaultInterval,
		target:   target,
		visible:  func() bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !s.visible() {
				continue
			}
			s.target.SyncTick(ctx)
		case <-ctx.Done():
			return
		}
	}
}
