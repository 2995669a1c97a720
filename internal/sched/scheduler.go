// Package sched runs the client's periodic tasks (telemetry tick, health
// sampling) against an injectable clock, so tests advance virtual time
// instead of sleeping.
package sched

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the minimal ticker surface the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.t.C }

func (t realTicker) Stop() { t.t.Stop() }

// Task is one periodic effect.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(now time.Time)
}

// Scheduler drives a fixed set of periodic tasks. Register tasks with Every
// before Run; Run blocks until the context is cancelled.
type Scheduler struct {
	clock Clock
	mu    sync.Mutex
	tasks []Task
}

func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock}
}

// Every registers a periodic task.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Fn: fn})
}

// Start launches one goroutine per registered task and returns. All tickers
// exist before Start returns, so a virtual clock advanced afterwards reaches
// every task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	for _, task := range tasks {
		ticker := s.clock.NewTicker(task.Interval)
		go func(task Task, ticker Ticker) {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C():
					task.Fn(now)
				}
			}
		}(task, ticker)
	}
}

// Run starts the tasks and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()
}

// ManualClock is a virtual clock for tests. Advancing it fires any tickers
// whose deadlines have passed.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{
		clock:    c,
		ch:       make(chan time.Time, 64),
		interval: d,
		next:     c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves virtual time forward, delivering every tick that falls
// inside the advanced window in deadline order per ticker.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(c.now) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.interval)
		}
	}
}

// manualTicker's mutable fields are guarded by the owning clock's mutex.
type manualTicker struct {
	clock    *ManualClock
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
