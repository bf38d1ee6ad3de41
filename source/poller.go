package source

import (
	"context"
	"sync"
	"time"

	"github.com/tool-recommender-bot/wuic/logger"
)

// Poller drives one origin's change detection on a fixed interval.
type Poller struct {
	target Pollable

	mu     sync.Mutex
	stop   chan struct{}
	closed bool
}

// NewPoller schedules polling of target. A non-positive interval creates the
// poller with polling disabled; SetInterval can enable it later.
func NewPoller(target Pollable, interval time.Duration) *Poller {
	p := &Poller{target: target}
	p.SetInterval(interval)
	return p
}

// SetInterval reschedules polling. Any pending schedule is cancelled first;
// a non-positive interval leaves polling disabled.
func (p *Poller) SetInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	if interval > 0 && !p.closed {
		stop := make(chan struct{})
		p.stop = stop
		go p.loop(interval, stop)
	}
}

func (p *Poller) loop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Bound one pass to its period so a stuck origin cannot pile
			// up overlapping passes.
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := p.target.Poll(ctx); err != nil {
				logger.L().Warn("origin poll failed", "error", err)
			}
			cancel()
		}
	}
}

// Close stops polling permanently.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}
