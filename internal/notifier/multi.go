package notifier

import (
	"context"
	"errors"
	"fmt"
)

// Multi sends every message to all sinks, once each, in order. It returns
// the joined errors of the sinks that failed.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	if len(m) == 0 {
		return ErrNoSinks
	}
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channelName(n), err))
		}
	}
	return errors.Join(errs...)
}
