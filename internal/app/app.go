// Package app wires provermon's components and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"provermon/internal/alert"
	"provermon/internal/config"
	"provermon/internal/eventbus"
	"provermon/internal/monitor"
	"provermon/internal/network"
	"provermon/internal/notifier"
	"provermon/internal/prover"
	"provermon/internal/runtime/supervisor"
	"provermon/internal/statusapi"
	"provermon/internal/storage"
	logx "provermon/pkg/logx"
	"provermon/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	logs    *logx.Service
	ownLogs bool
	log     logx.Logger

	store   storage.Store
	fetcher monitor.Fetcher
	closers []func() error
	sink    notifier.Notifier
	events  *eventbus.Bus
	metrics *prometheus.Registry
	loop    *monitor.Loop
	sd      *systemd.Notifier
	status  *statusapi.Server

	sup *supervisor.Supervisor
}

type Option func(*options)

type options struct {
	fetcher monitor.Fetcher
	logs    *logx.Service
}

// WithFetcher replaces the gRPC fetcher.
func WithFetcher(f monitor.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithLogService reuses an existing logging service instead of creating one.
func WithLogService(s *logx.Service) Option {
	return func(o *options) { o.logs = s }
}

// New builds the app from the committed configuration of cfgm.
func New(cfgm *config.Manager, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	cfg := cfgm.Get()
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}

	logs, ownLogs := o.logs, false
	if logs == nil {
		logs, _ = logx.New(LogConfig(cfg))
		ownLogs = true
	}
	log := logs.Logger().With(logx.String("comp", "app"))

	a := &App{cfgm: cfgm, cfg: cfg, logs: logs, ownLogs: ownLogs, log: log}
	ok := false
	defer func() {
		if !ok {
			a.closeAll()
		}
	}()

	store, err := storage.Open(storage.Config{
		Driver:  cfg.StorageDriver,
		Path:    cfg.StoragePath,
		DSN:     cfg.StorageDSN,
		MaxRows: cfg.HistoryMaxRows,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.store = store
	if store != nil {
		a.closers = append(a.closers, store.Close)
		log.Info("history storage enabled", logx.String("driver", cfg.StorageDriver))
	}

	a.fetcher = o.fetcher
	if a.fetcher == nil {
		c, err := network.New(network.Config{
			Endpoint:    cfg.GRPCEndpoint,
			CallTimeout: cfg.FetchTimeout,
		}, logs.Logger().With(logx.String("comp", "network")))
		if err != nil {
			return nil, err
		}
		a.fetcher = c
		a.closers = append(a.closers, c.Close)
	}

	sink, err := buildSinks(cfg, store, logs.Logger())
	if err != nil {
		return nil, err
	}
	a.sink = sink

	hb, err := cfg.Heartbeat()
	if err != nil {
		return nil, err
	}
	a.sd = systemd.New(cfg.SystemdNotify, logs.Logger())

	msgs := alert.New(alert.Config{
		Title:        cfg.AlertTitle,
		ExplorerBase: cfg.ExplorerBase,
		Prover:       cfg.ProverAddress,
	})
	a.events = eventbus.New()
	a.metrics = prometheus.NewRegistry()
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics.MustRegister(a.events.Collectors()...)
	a.loop = monitor.New(monitor.Config{
		Prover:           cfg.Address(),
		PollInterval:     cfg.PollInterval,
		Heartbeat:        hb,
		HeartbeatOnEmpty: cfg.HeartbeatOnEmpty,
		StartupMessage:   cfg.StartupMessage,
		FetchTimeout:     cfg.FetchTimeout,
	}, a.fetcher, a.sink, msgs, logs.Logger(),
		monitor.WithTickHook(a.afterTick),
		monitor.WithEvents(a.events),
		monitor.WithMetrics(monitor.NewMetrics(a.metrics)),
	)

	ok = true
	return a, nil
}

// LogConfig maps the configuration onto the logging service.
func LogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.LogLevel,
		Console: true,
		File: logx.FileConfig{
			Enabled: cfg.LogFile != "",
			Path:    cfg.LogFile,
		},
	}
}

func buildSinks(cfg *config.Config, store storage.Store, log logx.Logger) (notifier.Notifier, error) {
	var sinks notifier.Multi
	add := func(n notifier.Notifier) {
		// The recorder wraps the limiter so a message dropped by the
		// throttle is still recorded as a failed delivery.
		sinks = append(sinks, notifier.NewRecorder(notifier.NewLimited(n, cfg.NotifyRatePerSec, 2), store, log))
	}
	if cfg.DiscordWebhookURL != "" {
		d, err := notifier.NewDiscord(notifier.DiscordConfig{WebhookURL: cfg.DiscordWebhookURL},
			log.With(logx.String("comp", "discord")))
		if err != nil {
			return nil, err
		}
		add(d)
	}
	if cfg.TelegramEnabled() {
		tg, err := notifier.NewTelegram(notifier.TelegramConfig{Token: cfg.TelegramBotToken, ChatID: cfg.TelegramChatID},
			log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		add(tg)
	}
	if len(sinks) == 0 {
		return nil, notifier.ErrNoSinks
	}
	return sinks, nil
}

func (a *App) Logger() logx.Logger        { return a.log }
func (a *App) Monitor() *monitor.Loop     { return a.loop }
func (a *App) Config() *config.Config     { return a.cfg }
func (a *App) Store() storage.Store       { return a.store }
func (a *App) Systemd() *systemd.Notifier { return a.sd }
func (a *App) Events() *eventbus.Bus      { return a.events }

// StatusAddr is the bound status API address, or "" when it is disabled.
func (a *App) StatusAddr() string {
	if a.status == nil {
		return ""
	}
	return a.status.Addr()
}

// Metrics is the registry served on /metrics.
func (a *App) Metrics() *prometheus.Registry { return a.metrics }

// Check runs one fetch and sends the result without deduplication.
func (a *App) Check(ctx context.Context) (*prover.Record, error) {
	return a.loop.Once(ctx)
}

// Done is closed once the app's context is canceled (Stop or a fatal error).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error reported by a supervised goroutine.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the loop and the supporting goroutines. It does not block.
// Everything that can fail is set up before the loop starts, so an error
// here means the loop never ran.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}

	var statusLn net.Listener
	if addr := strings.TrimSpace(a.cfg.StatusAddr); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("status api: %w", err)
		}
		statusLn = ln
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if statusLn != nil {
		a.status = statusapi.NewServer(statusLn.Addr().String(), statusapi.NewRouter(statusapi.Deps{
			Monitor:    a.loop,
			History:    a.store,
			Goroutines: a.sup.Snapshot,
			Events:     a.events,
			Pprof:      a.cfg.StatusPprof,
			Metrics:    a.metrics,
		}), a.logs.Logger())
		// The status API is optional; its failure must not stop the loop.
		a.sup.Go0("statusapi", func(c context.Context) {
			if err := a.status.Serve(c, statusLn); err != nil {
				a.log.Error("status api stopped", logx.Err(err))
			}
		})
	}

	a.sup.Go("monitor", a.loop.Run)

	if a.cfgm.File() != "" {
		a.sup.Go("config.watch", a.cfgm.Watch)
		sub := a.cfgm.Subscribe(4)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
	}

	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		a.sd.KeepAlive(c, a.healthy)
	})

	a.sd.Ready()
	a.log.Info("app started",
		logx.String("prover", a.cfg.ProverAddress),
		logx.String("endpoint", a.cfg.GRPCEndpoint),
		logx.Bool("telegram", a.cfg.TelegramEnabled()),
		logx.String("storage", a.cfg.StorageDriver),
	)
	return nil
}

// reloadLoop applies live-reloadable settings. Everything else is logged
// as needing a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeChange(last, next)
			last = next
			if len(changed) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			a.logs.SetLevel(next.LogLevel)
			fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
			a.log.Info("config change applied", fields...)
			if rest := config.NeedsRestart(changed); len(rest) > 0 {
				a.log.Warn("config changes need a restart to take effect", logx.String("keys", strings.Join(rest, ",")))
			}
		}
	}
}

func (a *App) afterTick() {
	if a.sd == nil {
		return
	}
	a.sd.Watchdog()
	snap := a.loop.Snapshot()
	a.sd.Status(fmt.Sprintf("ticks=%d last=%s", snap.Ticks, orDash(snap.LastSeen())))
}

// healthy reports whether the loop ticked recently enough for a watchdog ping.
func (a *App) healthy() bool {
	snap := a.loop.Snapshot()
	if !snap.Running || snap.LastTick.IsZero() {
		return snap.Running
	}
	limit := 2*a.cfg.PollInterval + a.cfg.FetchTimeout
	return time.Since(snap.LastTick) <= limit
}

// Stop cancels everything and releases resources. Each step is bounded so a
// stuck component cannot stall shutdown.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		a.closeAll()
		return nil
	}
	a.log.Info("stopping")
	a.sd.Stopping()
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
			errs = append(errs, fmt.Errorf("%s: %w", name, stepCtx.Err()))
		}
	}

	step("supervisor", 3*time.Second, a.sup.Wait)
	step("resources", 2*time.Second, func(context.Context) error { return a.closeAll() })

	published, dropped := a.events.Stats()
	a.log.Info("stopped", logx.Uint64("events", published), logx.Uint64("events_dropped", dropped))
	if a.ownLogs {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
