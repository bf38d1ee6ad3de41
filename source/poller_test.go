package source

import (
	"context"
	"sync"
	"testing"
	"time"
)

// signalPollable counts poll passes and closes fired on the first one.
type signalPollable struct {
	mu    sync.Mutex
	calls int
	fired chan struct{}
}

func newSignalPollable() *signalPollable {
	return &signalPollable{fired: make(chan struct{})}
}

func (s *signalPollable) Poll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == 1 {
		close(s.fired)
	}
	return nil
}

func (s *signalPollable) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPoller_PollsOnInterval(t *testing.T) {
	target := newSignalPollable()
	p := NewPoller(target, 5*time.Millisecond)
	defer p.Close()

	select {
	case <-target.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a poll pass")
	}
}

func TestPoller_NonPositiveIntervalDisablesPolling(t *testing.T) {
	target := newSignalPollable()
	p := NewPoller(target, 0)
	defer p.Close()

	time.Sleep(50 * time.Millisecond)
	if n := target.count(); n != 0 {
		t.Fatalf("expected no poll passes, got %d", n)
	}
}

func TestPoller_SetIntervalEnablesPolling(t *testing.T) {
	target := newSignalPollable()
	p := NewPoller(target, 0)
	defer p.Close()

	p.SetInterval(5 * time.Millisecond)
	select {
	case <-target.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a poll pass after rescheduling")
	}
}

func TestPoller_CloseStopsPolling(t *testing.T) {
	target := newSignalPollable()
	p := NewPoller(target, 5*time.Millisecond)

	select {
	case <-target.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a poll pass")
	}
	p.Close()

	// Allow a pass already in flight to finish, then expect a stable count.
	time.Sleep(50 * time.Millisecond)
	before := target.count()
	time.Sleep(50 * time.Millisecond)
	if after := target.count(); after != before {
		t.Fatalf("expected polling stopped, count moved from %d to %d", before, after)
	}
}

func TestPoller_SetIntervalAfterCloseStaysStopped(t *testing.T) {
	target := newSignalPollable()
	p := NewPoller(target, 0)
	p.Close()

	p.SetInterval(5 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	if n := target.count(); n != 0 {
		t.Fatalf("expected no poll passes after close, got %d", n)
	}
}
