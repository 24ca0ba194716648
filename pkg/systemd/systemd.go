// Package systemd sends readiness and watchdog notifications to systemd.
// Outside a systemd unit (no NOTIFY_SOCKET) every call is a no-op.
package systemd

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "provermon/pkg/logx"
)

type Notifier struct {
	enabled  bool
	log      logx.Logger
	watchdog time.Duration

	// sent counts delivered notifications; used by status output and tests.
	sent atomic.Uint64
}

// New returns a notifier. With enabled=false it never talks to systemd.
func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{enabled: enabled, log: log.With(logx.String("comp", "systemd"))}
	if enabled {
		d, err := daemon.SdWatchdogEnabled(false)
		if err != nil {
			n.log.Warn("watchdog config invalid", logx.Err(err))
		}
		n.watchdog = d
	}
	return n
}

func (n *Notifier) Ready() bool    { return n.notify(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() bool { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form unit status line shown by systemctl.
func (n *Notifier) Status(msg string) bool { return n.notify("STATUS=" + msg) }

// Watchdog pings the watchdog when the unit has one.
func (n *Notifier) Watchdog() bool {
	if n.watchdog <= 0 {
		return false
	}
	return n.notify(daemon.SdNotifyWatchdog)
}

// WatchdogInterval is the unit's WatchdogSec, or 0.
func (n *Notifier) WatchdogInterval() time.Duration { return n.watchdog }

func (n *Notifier) Sent() uint64 { return n.sent.Load() }

// KeepAlive pings the watchdog every half interval while healthy reports
// true, until ctx is done. It returns immediately without a watchdog.
func (n *Notifier) KeepAlive(ctx context.Context, healthy func() bool) {
	if n.watchdog <= 0 {
		return
	}
	t := time.NewTicker(n.watchdog / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if healthy == nil || healthy() {
				n.Watchdog()
			} else {
				n.log.Warn("skipping watchdog ping; monitor unhealthy")
			}
		}
	}
}

func (n *Notifier) notify(state string) bool {
	if !n.enabled {
		return false
	}
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	if ok {
		n.sent.Add(1)
		n.log.Trace("sd_notify", logx.String("state", state))
	}
	return ok
}
