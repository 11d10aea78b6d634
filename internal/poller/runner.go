// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/modbus-regsync/internal/event"
)

// Run drives the poller until ctx is cancelled. One goroutine per unit.
// The first read happens immediately. Pending writes are executed as they
// arrive, between reads, never overlapping one.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case w := <-p.queue.C():
			p.execute(ctx, w)

		case <-timer.C:
			timer.Reset(p.step(ctx))
		}
	}
}

// step runs one tick and returns the delay until the next one.
func (p *Poller) step(ctx context.Context) time.Duration {
	if !p.link.IsConnected() {
		// once per disconnect episode
		if !p.paused {
			p.paused = true
			p.logf(event.SeverityWarn, "connection lost, reads paused")
		}
		return p.cfg.PauseRetry
	}

	if p.paused {
		p.paused = false
		p.logf(event.SeverityInfo, "connection restored, reads resumed")
	}

	p.PollOnce(ctx)
	return p.cfg.Interval
}
