package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSchedulerFiresOnVirtualTicks(t *testing.T) {
	clock := NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := New(clock)

	var ticks atomic.Int64
	s.Every("tick", time.Second, func(time.Time) { ticks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	clock.Advance(3 * time.Second)
	waitFor(t, func() bool { return ticks.Load() == 3 })

	// No further ticks without further advancement.
	time.Sleep(10 * time.Millisecond)
	if got := ticks.Load(); got != 3 {
		t.Errorf("ticks = %d, want 3", got)
	}
}

func TestSchedulerIndependentIntervals(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s := New(clock)

	var fast, slow atomic.Int64
	s.Every("fast", time.Second, func(time.Time) { fast.Add(1) })
	s.Every("slow", 5*time.Second, func(time.Time) { slow.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	clock.Advance(10 * time.Second)
	waitFor(t, func() bool { return fast.Load() == 10 && slow.Load() == 2 })
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s := New(clock)
	s.Every("tick", time.Second, func(time.Time) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManualTickerStopSuppressesTicks(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	clock.Advance(2 * time.Second)
	if got := len(ticker.C()); got != 2 {
		t.Fatalf("pending ticks = %d, want 2", got)
	}

	ticker.Stop()
	clock.Advance(3 * time.Second)
	if got := len(ticker.C()); got != 2 {
		t.Errorf("ticks after Stop = %d, want no new deliveries", got)
	}
}

func TestManualTickerStopConcurrentWithAdvance(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	tickers := make([]Ticker, 8)
	for i := range tickers {
		tickers[i] = clock.NewTicker(time.Second)
	}

	var wg sync.WaitGroup
	wg.Add(len(tickers) + 1)
	go func() {
		defer wg.Done()
		clock.Advance(5 * time.Second)
	}()
	for _, ticker := range tickers {
		go func(ticker Ticker) {
			defer wg.Done()
			ticker.Stop()
		}(ticker)
	}
	wg.Wait()
}

func TestManualClockNow(t *testing.T) {
	start := time.Unix(100, 0)
	clock := NewManualClock(start)
	clock.Advance(90 * time.Second)
	if got := clock.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() = %v", got)
	}
}
