package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/chronon"

	"provermon/internal/alert"
	"provermon/internal/eventbus"
	"provermon/internal/notifier"
	"provermon/internal/prover"
	"provermon/internal/schedule"
	logx "provermon/pkg/logx"
)

// step is one scripted fetch result. The last step repeats forever.
type step struct {
	rec   *prover.Record
	err   error
	panic bool
}

type scriptFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *scriptFetcher) FetchLatest(ctx context.Context, _ prover.Address) (*prover.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.steps)-1)
	f.calls++
	s := f.steps[i]
	if s.panic {
		panic("fetcher exploded")
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("fetch without deadline")
	}
	return s.rec, s.err
}

// set replaces the script with a single repeating step.
func (f *scriptFetcher) set(s step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = []step{s}
	f.calls = 0
}

type sink struct {
	mu   sync.Mutex
	msgs []notifier.Message
	err  error
}

func (s *sink) Send(_ context.Context, m notifier.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return s.err
}

func (s *sink) kinds() []notifier.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks := make([]notifier.Kind, len(s.msgs))
	for i, m := range s.msgs {
		ks[i] = m.Kind
	}
	return ks
}

func (s *sink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks := make([]string, len(s.msgs))
	for i, m := range s.msgs {
		ks[i] = m.Key
	}
	return ks
}

func record(status prover.Status, id string, updated int64) *prover.Record {
	t := time.Unix(updated, 0).UTC()
	return &prover.Record{Status: status, ID: id, UpdatedAt: &t}
}

var (
	recA = record(prover.StatusAssigned, "x1", 1000)
	recB = record(prover.StatusFulfilled, "x1", 2000)
)

// fakeTimer creates a fake, controllable newTimer closure
// from the given FakeClock.
func fakeTimer(fc *chronon.FakeClock) newTimer {
	return func(d time.Duration) (<-chan time.Time, func() bool) {
		ft := fc.NewTimer(d)
		return ft.C(), ft.Stop
	}
}

type LoopTestSuite struct {
	suite.Suite

	start time.Time
	clock *chronon.FakeClock

	fetcher *scriptFetcher
	sink    *sink
}

func (suite *LoopTestSuite) SetupTest() {
	suite.start = time.Unix(1_700_000_000, 0)
	suite.clock = chronon.NewFakeClock(suite.start)
	suite.fetcher = &scriptFetcher{steps: []step{{rec: recA}}}
	suite.sink = &sink{}
}

func (suite *LoopTestSuite) newLoop(cfg Config, opts ...Option) *Loop {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.Heartbeat.IsZero() {
		cfg.Heartbeat = schedule.Every(time.Hour)
	}
	msgs := alert.NewWithClock(alert.Config{Prover: "0xab"}, suite.clock.Now)
	opts = append([]Option{WithClock(suite.clock.Now), WithTimer(fakeTimer(suite.clock))}, opts...)
	return New(cfg, suite.fetcher, suite.sink, msgs, logx.Nop(), opts...)
}

// tick advances the clock by the poll interval (except before the first
// tick) and runs one iteration.
func (suite *LoopTestSuite) ticks(l *Loop, n int) {
	for i := 0; i < n; i++ {
		if l.Snapshot().Ticks > 0 {
			suite.clock.Add(l.cfg.PollInterval)
		}
		_ = l.Tick(context.Background())
	}
}

func (suite *LoopTestSuite) TestFirstRecordIsAlwaysAChange() {
	for _, rec := range []*prover.Record{recA, recB, {Status: prover.StatusAssigned}} {
		suite.SetupTest()
		suite.fetcher.set(step{rec: rec})
		l := suite.newLoop(Config{})

		suite.ticks(l, 1)
		suite.Equal([]notifier.Kind{notifier.KindChange}, suite.sink.kinds())
		suite.Require().NotNil(l.State().LastSeenKey)
		suite.Equal(rec.Key(), *l.State().LastSeenKey)
	}
}

func (suite *LoopTestSuite) TestIdenticalRecordBeforeHeartbeat() {
	l := suite.newLoop(Config{})

	// 59 ticks span 58 minutes.
	suite.ticks(l, 59)
	suite.Equal([]notifier.Kind{notifier.KindChange}, suite.sink.kinds())
	suite.EqualValues(59, l.Snapshot().Ticks)
	suite.Zero(l.Snapshot().Heartbeats)
}

func (suite *LoopTestSuite) TestHeartbeatFiresWhenElapsedReachesInterval() {
	l := suite.newLoop(Config{})

	suite.ticks(l, 60) // elapsed 59m
	suite.Equal([]notifier.Kind{notifier.KindChange}, suite.sink.kinds())

	suite.ticks(l, 1) // elapsed exactly 60m
	suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindHeartbeat}, suite.sink.kinds())
	suite.Equal(suite.clock.Now().Unix(), l.State().LastHeartbeat)

	suite.ticks(l, 59)
	suite.Len(suite.sink.kinds(), 2)
	suite.ticks(l, 1)
	suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindHeartbeat, notifier.KindHeartbeat}, suite.sink.kinds())
}

func (suite *LoopTestSuite) TestChangeAndHeartbeatInSameTick() {
	suite.fetcher.steps = []step{{rec: recA}, {rec: recB}}
	l := suite.newLoop(Config{PollInterval: time.Hour})

	suite.ticks(l, 2)
	suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindChange, notifier.KindHeartbeat}, suite.sink.kinds())
	suite.Equal([]string{recA.Key().String(), recB.Key().String(), recB.Key().String()}, suite.sink.keys())
}

func (suite *LoopTestSuite) TestEventsPublished() {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()
	suite.fetcher.steps = []step{{rec: recA}, {err: errors.New("unavailable")}, {rec: recB}}
	l := suite.newLoop(Config{PollInterval: 30 * time.Minute}, WithEvents(bus))

	suite.ticks(l, 3)
	var types []string
	for len(ch) > 0 {
		e := <-ch
		suite.False(e.Time.IsZero())
		types = append(types, e.Type)
	}
	suite.Equal([]string{
		eventbus.TypeChange,
		eventbus.TypeFetchError,
		eventbus.TypeChange,
		eventbus.TypeHeartbeat,
	}, types)
}

func (suite *LoopTestSuite) TestMetricsFollowCounters() {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	suite.fetcher.steps = []step{{rec: recA}, {err: errors.New("unavailable")}, {rec: recB}}
	suite.sink.err = notifier.ErrDelivery
	l := suite.newLoop(Config{PollInterval: 30 * time.Minute}, WithMetrics(m))

	suite.ticks(l, 3)
	snap := l.Snapshot()
	suite.Equal(float64(snap.Ticks), testutil.ToFloat64(m.ticks))
	suite.Equal(float64(snap.FetchErrors), testutil.ToFloat64(m.fetchErrors))
	suite.Equal(1.0, testutil.ToFloat64(m.changes.WithLabelValues("ASSIGNED")))
	suite.Equal(1.0, testutil.ToFloat64(m.changes.WithLabelValues("FULFILLED")))
	suite.Equal(1.0, testutil.ToFloat64(m.heartbeats.WithLabelValues(string(notifier.KindHeartbeat))))
	suite.Equal(2.0, testutil.ToFloat64(m.notifyErrors.WithLabelValues(string(notifier.KindChange))))
	suite.Equal(float64(snap.NotifyErrors), testutil.ToFloat64(m.notifyErrors.WithLabelValues(string(notifier.KindChange)))+
		testutil.ToFloat64(m.notifyErrors.WithLabelValues(string(notifier.KindHeartbeat))))
	suite.Equal(float64(suite.clock.Now().Unix()), testutil.ToFloat64(m.lastTick))

	n, err := testutil.GatherAndCount(reg)
	suite.Require().NoError(err)
	suite.Positive(n)
}

func (suite *LoopTestSuite) TestFetchErrorKeepsState() {
	boom := errors.New("unavailable")
	suite.fetcher.steps = []step{{rec: recA}, {err: boom}, {rec: recA}, {rec: recB}}
	l := suite.newLoop(Config{})

	suite.ticks(l, 1)
	suite.ticks(l, 1)
	snap := l.Snapshot()
	suite.EqualValues(1, snap.FetchErrors)
	suite.Equal("unavailable", snap.LastError)
	suite.Equal(recA.Key().String(), snap.LastSeen())

	suite.ticks(l, 2)
	suite.Equal([]string{recA.Key().String(), recB.Key().String()}, suite.sink.keys())
	suite.Empty(l.Snapshot().LastError)
}

func (suite *LoopTestSuite) TestNotifyFailureStillAdvancesState() {
	suite.sink.err = notifier.ErrDelivery
	l := suite.newLoop(Config{})

	suite.ticks(l, 1)
	suite.NoError(l.Tick(context.Background()))
	suite.Len(suite.sink.kinds(), 1, "no retry on the next tick")
	suite.EqualValues(1, l.Snapshot().NotifyErrors)
	suite.Equal(recA.Key(), *l.State().LastSeenKey)
}

func (suite *LoopTestSuite) TestNoRecord() {
	suite.Run("heartbeat on empty", func() {
		suite.SetupTest()
		suite.fetcher.steps = []step{{rec: recA}, {rec: nil}}
		l := suite.newLoop(Config{HeartbeatOnEmpty: true})

		suite.ticks(l, 60)
		suite.Equal([]notifier.Kind{notifier.KindChange}, suite.sink.kinds())
		suite.Equal(recA.Key().String(), l.Snapshot().LastSeen(), "empty result keeps the last key")
		suite.Nil(l.Snapshot().LastRecord)

		suite.ticks(l, 1)
		suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindNoData}, suite.sink.kinds())
		suite.Equal(suite.clock.Now().Unix(), l.State().LastHeartbeat)

		// the same record again after an empty spell is not a change
		suite.fetcher.set(step{rec: recA})
		suite.ticks(l, 1)
		suite.Len(suite.sink.kinds(), 2)
	})

	suite.Run("silent on empty", func() {
		suite.SetupTest()
		suite.fetcher.set(step{rec: nil})
		l := suite.newLoop(Config{HeartbeatOnEmpty: false})

		suite.ticks(l, 200)
		suite.Empty(suite.sink.kinds())
		suite.Nil(l.State().LastSeenKey)
		suite.Equal(suite.start.Unix(), l.State().LastHeartbeat)
	})
}

func (suite *LoopTestSuite) TestPanicIsRecovered() {
	suite.fetcher.steps = []step{{panic: true}, {rec: recA}}
	l := suite.newLoop(Config{})

	suite.ErrorIs(l.Tick(context.Background()), ErrPanic)
	suite.ticks(l, 1)
	suite.Equal([]notifier.Kind{notifier.KindChange}, suite.sink.kinds())
}

func (suite *LoopTestSuite) TestCanceledContextSkipsTick() {
	l := suite.newLoop(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite.ErrorIs(l.Tick(ctx), context.Canceled)
	suite.Zero(suite.fetcher.calls)
	suite.Empty(suite.sink.kinds())
}

func (suite *LoopTestSuite) TestScenarioRecordChangesOnTick60() {
	suite.fetcher.steps = make([]step, 0, 61)
	for i := 0; i < 59; i++ {
		suite.fetcher.steps = append(suite.fetcher.steps, step{rec: recA})
	}
	suite.fetcher.steps = append(suite.fetcher.steps, step{rec: recB})
	l := suite.newLoop(Config{PollInterval: 60 * time.Second, Heartbeat: schedule.Every(3600 * time.Second)})

	// tick 60 runs at elapsed 3540s: change only.
	suite.ticks(l, 60)
	suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindChange}, suite.sink.kinds())
	suite.Equal([]string{recA.Key().String(), recB.Key().String()}, suite.sink.keys())

	// tick 61 reaches 3600s: heartbeat for record B, no further change.
	suite.ticks(l, 1)
	suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindChange, notifier.KindHeartbeat}, suite.sink.kinds())
	suite.Equal(recB.Key().String(), suite.sink.keys()[2])
}

func (suite *LoopTestSuite) TestCronHeartbeat() {
	c, err := schedule.Parse("@hourly", time.UTC)
	suite.Require().NoError(err)
	// start is 22:13:20 UTC, so the first heartbeat is due at 23:00.
	l := suite.newLoop(Config{Heartbeat: c})

	suite.ticks(l, 47) // 22:59:20
	suite.Zero(l.Snapshot().Heartbeats)
	suite.ticks(l, 1) // 23:00:20
	suite.EqualValues(1, l.Snapshot().Heartbeats)
}

func (suite *LoopTestSuite) TestOnceIgnoresDedupe() {
	l := suite.newLoop(Config{})
	suite.ticks(l, 1)

	rec, err := l.Once(context.Background())
	suite.Require().NoError(err)
	suite.Equal(recA, rec)

	suite.fetcher.set(step{rec: nil})
	rec, err = l.Once(context.Background())
	suite.Require().NoError(err)
	suite.Nil(rec)
	suite.Equal([]notifier.Kind{notifier.KindChange, notifier.KindCheck, notifier.KindCheck}, suite.sink.kinds())

	suite.fetcher.set(step{err: errors.New("down")})
	_, err = l.Once(context.Background())
	suite.Error(err)
}

func (suite *LoopTestSuite) TestSleepStopsOnCancel() {
	l := suite.newLoop(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() { done <- l.sleep(ctx, time.Hour) }()

	cancel()
	select {
	case ok := <-done:
		suite.False(ok)
	case <-time.After(2 * time.Second):
		suite.Fail("sleep did not observe cancellation")
	}
}

func TestLoop(t *testing.T) {
	suite.Run(t, new(LoopTestSuite))
}

func TestRunStopsWithinOneStep(t *testing.T) {
	f := &scriptFetcher{steps: []step{{rec: recA}}}
	s := &sink{}
	l := New(Config{PollInterval: time.Hour, StartupMessage: true}, f, s, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for l.Snapshot().Ticks == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !l.Snapshot().Running {
		t.Fatalf("loop not running: %+v", l.Snapshot())
	}
	if err := l.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Run: %v", err)
	}

	cancel()
	stopped := time.Now()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("loop did not stop within one sleep step")
	}
	if d := time.Since(stopped); d > sleepStep {
		t.Fatalf("stop took %s", d)
	}
	if l.Snapshot().Running {
		t.Fatal("snapshot still running")
	}
	got := s.kinds()
	if len(got) != 2 || got[0] != notifier.KindStartup || got[1] != notifier.KindChange {
		t.Fatalf("kinds = %v", got)
	}
}

func TestRunCallsTickHook(t *testing.T) {
	f := &scriptFetcher{steps: []step{{rec: recA}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hooks int
	l := New(Config{PollInterval: time.Hour}, f, &sink{}, nil, logx.Nop(), WithTickHook(func() {
		hooks++
		cancel()
	}))
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hooks != 1 {
		t.Fatalf("hooks = %d", hooks)
	}
}
