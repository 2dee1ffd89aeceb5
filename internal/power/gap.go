package power

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// GapDetector infers a resume from a ticker that fired much later than
// scheduled. It never reports Suspend.
type GapDetector struct {
	clock     clockwork.Clock
	interval  time.Duration
	threshold time.Duration

	events chan Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGapDetector starts polling clock every interval. A tick arriving more
// than twice the interval after the previous one is reported as Resume.
func NewGapDetector(ctx context.Context, clock clockwork.Clock, interval time.Duration) *GapDetector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &GapDetector{
		clock:     clock,
		interval:  interval,
		threshold: interval,
		events:    make(chan Event, 1),
		cancel:    cancel,
	}

	// Round(0) strips the monotonic reading, which stops while suspended.
	start := clock.Now().Round(0)
	ticker := clock.NewTicker(interval)
	d.wg.Add(1)
	go d.run(ctx, ticker, start)
	return d
}

func (d *GapDetector) run(ctx context.Context, ticker clockwork.Ticker, last time.Time) {
	defer d.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		now := d.clock.Now().Round(0)
		gap := now.Sub(last)
		last = now
		if gap <= d.interval+d.threshold {
			continue
		}

		log.Infof("clock jumped %s between polls, assuming resume", gap.Round(time.Second))
		select {
		case d.events <- Resume:
		default:
		}
	}
}

func (d *GapDetector) Events() <-chan Event {
	return d.events
}

// Close stops polling. It is safe to call more than once.
func (d *GapDetector) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}
