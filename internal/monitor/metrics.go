package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"provermon/internal/notifier"
)

// Metrics are the loop's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ticks         prometheus.Counter
	fetchErrors   prometheus.Counter
	changes       *prometheus.CounterVec
	heartbeats    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	notifyErrors  *prometheus.CounterVec
	lastTick      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "provermon_ticks_total",
			Help: "Loop iterations run.",
		}),
		fetchErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "provermon_fetch_errors_total",
			Help: "Ticks skipped because the status lookup failed.",
		}),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "provermon_status_changes_total",
			Help: "Observed state changes by new status.",
		}, []string{"status"}),
		heartbeats: f.NewCounterVec(prometheus.CounterOpts{
			Name: "provermon_heartbeats_total",
			Help: "Heartbeats sent, by kind (heartbeat or no_data).",
		}, []string{"kind"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "provermon_notifications_total",
			Help: "Notifications delivered, by kind.",
		}, []string{"kind"}),
		notifyErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "provermon_notify_errors_total",
			Help: "Notifications that failed, by kind.",
		}, []string{"kind"}),
		lastTick: f.NewGauge(prometheus.GaugeOpts{
			Name: "provermon_last_tick_timestamp_seconds",
			Help: "Unix time of the last completed fetch.",
		}),
	}
}

func (m *Metrics) tick() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) fetched(unix int64, err error) {
	if m == nil {
		return
	}
	m.lastTick.Set(float64(unix))
	if err != nil {
		m.fetchErrors.Inc()
	}
}

func (m *Metrics) changed(status string) {
	if m != nil {
		m.changes.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) heartbeat(kind notifier.Kind) {
	if m != nil {
		m.heartbeats.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) sent(kind notifier.Kind, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifyErrors.WithLabelValues(string(kind)).Inc()
		return
	}
	m.notifications.WithLabelValues(string(kind)).Inc()
}
