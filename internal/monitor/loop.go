package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"provermon/internal/alert"
	"provermon/internal/eventbus"
	"provermon/internal/notifier"
	"provermon/internal/prover"
	"provermon/internal/schedule"
	logx "provermon/pkg/logx"
)

var (
	ErrRunning = errors.New("monitor already running")
	ErrPanic   = errors.New("monitor tick panicked")
)

const (
	DefaultPollInterval      = 60 * time.Second
	DefaultHeartbeatInterval = time.Hour
	DefaultFetchTimeout      = 20 * time.Second
	DefaultNotifyTimeout     = 30 * time.Second
)

// Fetcher returns the latest record for a prover, or nil when there is none.
type Fetcher interface {
	FetchLatest(ctx context.Context, addr prover.Address) (*prover.Record, error)
}

// Publisher receives loop events. *eventbus.Bus implements it.
type Publisher interface {
	Publish(e eventbus.Event)
}

type Config struct {
	Prover       prover.Address
	PollInterval time.Duration
	// Heartbeat defaults to an hourly interval when zero.
	Heartbeat schedule.Cadence
	// HeartbeatOnEmpty sends a "no data" heartbeat when nothing was found.
	HeartbeatOnEmpty bool
	StartupMessage   bool
	FetchTimeout     time.Duration
	NotifyTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Heartbeat.IsZero() {
		c.Heartbeat = schedule.Every(DefaultHeartbeatInterval)
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
}

type Option func(*Loop)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTimer replaces the timer used between ticks.
func WithTimer(fn func(time.Duration) (<-chan time.Time, func() bool)) Option {
	return func(l *Loop) {
		if fn != nil {
			l.newTimer = fn
		}
	}
}

// WithTickHook registers fn to run after every tick of Run (e.g. a
// watchdog ping). It runs on the loop goroutine.
func WithTickHook(fn func()) Option {
	return func(l *Loop) { l.onTick = fn }
}

// WithEvents publishes start, stop, change, heartbeat and fetch failure
// events to p.
func WithEvents(p Publisher) Option {
	return func(l *Loop) { l.events = p }
}

// WithMetrics records loop activity in m.
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// Loop is the polling loop.
type Loop struct {
	cfg     Config
	fetcher Fetcher
	notify  notifier.Notifier
	msgs    *alert.Formatter
	log     logx.Logger

	now      func() time.Time
	newTimer newTimer
	onTick   func()
	events   Publisher
	metrics  *Metrics

	running atomic.Bool

	// owned by the loop goroutine
	state   State
	counter Snapshot

	snap atomic.Pointer[Snapshot]
}

func New(cfg Config, f Fetcher, n notifier.Notifier, msgs *alert.Formatter, log logx.Logger, opts ...Option) *Loop {
	cfg.applyDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		cfg:      cfg,
		fetcher:  f,
		notify:   n,
		msgs:     msgs,
		log:      log.With(logx.String("comp", "monitor")),
		now:      time.Now,
		newTimer: defaultNewTimer,
	}
	for _, o := range opts {
		o(l)
	}
	if l.msgs == nil {
		l.msgs = alert.NewWithClock(alert.Config{Prover: cfg.Prover.Hex()}, l.now)
	}
	l.state.LastHeartbeat = l.now().Unix()
	l.publish()
	return l
}

// Run sends the optional startup message, then ticks every PollInterval
// until ctx is canceled. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	start := l.now()
	l.state.LastHeartbeat = start.Unix()
	l.state.Running = true
	l.counter.StartedAt = start.UTC()
	l.publish()

	l.log.Info("monitor started",
		logx.String("prover", l.cfg.Prover.Hex()),
		logx.Duration("poll", l.cfg.PollInterval),
		logx.String("heartbeat", l.cfg.Heartbeat.String()),
	)

	l.emit(eventbus.Event{Type: eventbus.TypeStarted})

	if l.cfg.StartupMessage {
		if err := l.send(ctx, l.msgs.Startup(l.cfg.PollInterval, l.cfg.Heartbeat.String())); err != nil {
			l.log.Warn("startup message failed", logx.Err(err))
		}
	}

	for ctx.Err() == nil {
		_ = l.Tick(ctx)
		if l.onTick != nil {
			l.onTick()
		}
		if !l.sleep(ctx, l.cfg.PollInterval) {
			break
		}
	}

	l.state.Running = false
	l.publish()
	l.emit(eventbus.Event{Type: eventbus.TypeStopped})
	l.log.Info("monitor stopped", logx.Uint64("ticks", l.counter.Ticks))
	return nil
}

// Tick runs one iteration. Errors are logged and counted; the returned
// error only reports what went wrong in this tick. Tick must not be called
// concurrently with Run.
func (l *Loop) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			l.log.Error("tick panic", logx.Any("panic", r), logx.Stack(logx.StackTrace(3, 24)))
		}
		if err != nil {
			l.counter.LastError = err.Error()
		} else {
			l.counter.LastError = ""
		}
		l.publish()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	l.counter.Ticks++
	l.metrics.tick()

	rec, err := l.fetch(ctx)
	now := l.now()
	l.counter.LastTick = now.UTC()
	l.metrics.fetched(now.Unix(), err)
	if err != nil {
		l.counter.FetchErrors++
		l.log.Warn("fetch failed", logx.Err(err))
		l.emit(eventbus.Event{Type: eventbus.TypeFetchError, Err: err.Error()})
		return err
	}
	l.counter.LastRecord = rec

	var errs []error
	if rec != nil {
		key := rec.Key()
		if l.state.LastSeenKey == nil || *l.state.LastSeenKey != key {
			l.log.Info("status changed", logx.String("key", key.String()), logx.String("prev", l.lastSeen()))
			if err := l.send(ctx, l.msgs.Change(rec)); err != nil {
				errs = append(errs, err)
			}
			l.state.LastSeenKey = &key
			l.counter.Changes++
			l.metrics.changed(rec.Status.String())
			l.emit(eventbus.Event{Type: eventbus.TypeChange, Key: key.String(), Status: rec.Status.String()})
		} else {
			l.log.Debug("status unchanged", logx.String("key", key.String()))
		}
	} else {
		l.log.Debug("no assigned or fulfilled orders")
	}

	if l.heartbeatDue(now) && (rec != nil || l.cfg.HeartbeatOnEmpty) {
		hb := l.msgs.Heartbeat(rec)
		if err := l.send(ctx, hb); err != nil {
			errs = append(errs, err)
		}
		l.state.LastHeartbeat = now.Unix()
		l.counter.Heartbeats++
		l.metrics.heartbeat(hb.Kind)
		l.emit(eventbus.Event{Type: eventbus.TypeHeartbeat, Key: l.lastSeen()})
	}

	return errors.Join(errs...)
}

func (l *Loop) emit(e eventbus.Event) {
	if l.events == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	l.events.Publish(e)
}

// Once fetches the latest record and sends it without deduplication.
func (l *Loop) Once(ctx context.Context) (*prover.Record, error) {
	rec, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.send(ctx, l.msgs.Check(rec)); err != nil {
		return rec, err
	}
	return rec, nil
}

// Snapshot returns the state published after the last tick.
func (l *Loop) Snapshot() Snapshot {
	if s := l.snap.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// State returns the loop state. It is only safe on the loop goroutine or
// after Run returned.
func (l *Loop) State() State { return l.state }

func (l *Loop) fetch(ctx context.Context) (*prover.Record, error) {
	fctx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	defer cancel()
	return l.fetcher.FetchLatest(fctx, l.cfg.Prover)
}

func (l *Loop) send(ctx context.Context, msg notifier.Message) error {
	nctx, cancel := context.WithTimeout(ctx, l.cfg.NotifyTimeout)
	defer cancel()
	err := l.notify.Send(nctx, msg)
	l.metrics.sent(msg.Kind, err)
	if err != nil {
		l.counter.NotifyErrors++
		l.log.Error("notify failed", logx.String("kind", string(msg.Kind)), logx.Err(err))
		return err
	}
	l.log.Info("notification sent", logx.String("kind", string(msg.Kind)), logx.String("key", msg.Key))
	return nil
}

func (l *Loop) heartbeatDue(now time.Time) bool {
	return l.cfg.Heartbeat.Due(time.Unix(l.state.LastHeartbeat, 0), time.Unix(now.Unix(), 0))
}

// sleep waits d in steps of at most sleepStep. It returns false when ctx
// was canceled.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		if ctx.Err() != nil {
			return false
		}
		step := min(d, sleepStep)
		ch, stop := l.newTimer(step)
		select {
		case <-ctx.Done():
			stop()
			return false
		case <-ch:
		}
		d -= step
	}
	return ctx.Err() == nil
}

func (l *Loop) lastSeen() string {
	if l.state.LastSeenKey == nil {
		return ""
	}
	return l.state.LastSeenKey.String()
}

func (l *Loop) publish() {
	s := l.counter
	s.State = l.state
	if l.state.LastSeenKey != nil {
		k := *l.state.LastSeenKey
		s.LastSeenKey = &k
	}
	l.snap.Store(&s)
}
