// Package trigger generalizes the ticker-driven Start/run/Stop loop
// the teacher uses for its reconciler and scheduler into the
// trigger-pulsed cooperative workflow loop the spec's workflows share:
// a multi-producer single-consumer channel that a pulse arriving
// mid-run coalesces into exactly one re-run, plus a periodic safety
// net and a one-shot delayed re-trigger for completion policies like
// app validation's "re-run in 10s if work remains".
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sender is the producer side of a Loop's trigger channel. Multiple
// senders (incoming ops, gossip, a periodic ticker) share one Loop.
type Sender chan struct{}

// Trigger pulses the loop. If a pulse is already pending, or the loop
// is mid-run, this is a no-op: one pending pulse always coalesces to
// exactly one subsequent run.
func (s Sender) Trigger() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// Work is one workflow iteration. Returning an error logs it; the
// loop keeps running regardless (per §5, only Shutdown stops a loop).
type Work func(ctx context.Context) error

// Loop is a single-instance-per-space cooperative workflow runner: it
// drains its trigger channel, runs Work, and yields. A trigger arriving
// during a run is retained (capacity-1 channel) so it coalesces into
// exactly one subsequent run rather than queuing up a backlog.
type Loop struct {
	name     string
	work     Work
	interval time.Duration // 0 disables the periodic safety-net tick
	logger   zerolog.Logger

	triggerCh chan struct{}
	delayCh   chan time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      sync.Mutex
	running bool
}

// NewLoop builds a Loop named for logging, with an optional periodic
// safety-net interval (pass 0 to rely solely on explicit triggers).
func NewLoop(name string, interval time.Duration, logger zerolog.Logger, work Work) *Loop {
	return &Loop{
		name:      name,
		work:      work,
		interval:  interval,
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
		delayCh:   make(chan time.Duration, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Sender returns the channel other components pulse to wake this loop.
func (l *Loop) Sender() Sender { return Sender(l.triggerCh) }

// Start begins the loop's goroutine. The initial run happens
// immediately, matching the teacher's reconciler/scheduler start
// behavior of not waiting out the first tick.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go l.run(ctx)
}

// Stop requests cooperative shutdown and blocks until the current
// iteration's transaction finishes and the loop exits, per §5
// cancellation: "in-flight workflow iterations finish their current
// transaction and then exit."
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh
}

// TriggerAfter schedules a pulse after d, used by app validation's
// completion policy (re-run in 10s if dependency fetches haven't
// timed out). Scheduling a new delay replaces any pending one.
func (l *Loop) TriggerAfter(d time.Duration) {
	select {
	case l.delayCh <- d:
	default:
		select {
		case <-l.delayCh:
		default:
		}
		l.delayCh <- d
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if l.interval > 0 {
		ticker = time.NewTicker(l.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	var delayTimer *time.Timer
	var delayC <-chan time.Time

	l.runOnce(ctx)

	for {
		select {
		case <-l.triggerCh:
			l.runOnce(ctx)
		case <-tickC:
			l.runOnce(ctx)
		case d := <-l.delayCh:
			if delayTimer != nil {
				delayTimer.Stop()
			}
			delayTimer = time.NewTimer(d)
			delayC = delayTimer.C
		case <-delayC:
			delayC = nil
			l.runOnce(ctx)
		case <-l.stopCh:
			l.logger.Info().Str("loop", l.name).Msg("trigger loop stopped")
			return
		case <-ctx.Done():
			l.logger.Info().Str("loop", l.name).Msg("trigger loop canceled")
			return
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	if err := l.work(ctx); err != nil {
		l.logger.Error().Err(err).Str("loop", l.name).Msg("workflow iteration failed")
	}
}
