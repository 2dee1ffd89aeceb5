//go:build !linux

package power

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// NewMonitor returns a gap detector; there is no suspend notification we
// can subscribe to without a window message loop.
func NewMonitor(ctx context.Context, clock clockwork.Clock, pollInterval time.Duration) Monitor {
	return NewGapDetector(ctx, clock, pollInterval)
}
