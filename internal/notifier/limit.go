package notifier

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles a sink with a token bucket. Waiting is bounded by the
// send context; a message that cannot get a token in time is not sent.
type Limited struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewLimited allows ratePerSec messages per second with a burst of
// burst. Non-positive values fall back to 1/s and a burst of 2.
func NewLimited(next Notifier, ratePerSec float64, burst int) *Limited {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = 2
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

func (l *Limited) Name() string { return channelName(l.next) }

func (l *Limited) Send(ctx context.Context, msg Message) error {
	if msg.Empty() {
		return l.next.Send(ctx, msg)
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Send(ctx, msg)
}
