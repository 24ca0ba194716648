// Package statusapi serves the monitor's state over HTTP.
package statusapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provermon/internal/eventbus"
	"provermon/internal/monitor"
	"provermon/internal/runtime/supervisor"
	"provermon/internal/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500

	eventBuffer     = 32
	sseWriteTimeout = 5 * time.Second
)

// SnapshotSource is implemented by *monitor.Loop.
type SnapshotSource interface {
	Snapshot() monitor.Snapshot
}

// EventSource is implemented by *eventbus.Bus.
type EventSource interface {
	Subscribe(buffer int) (<-chan eventbus.Event, func())
}

type Deps struct {
	Monitor SnapshotSource
	// History is nil when storage is disabled.
	History storage.Store
	// Goroutines is optional.
	Goroutines func() []supervisor.Stats
	// Events enables GET /events when set.
	Events EventSource
	// Pprof mounts net/http/pprof under /debug/pprof.
	Pprof bool
	// Metrics enables GET /metrics when set.
	Metrics prometheus.Gatherer
}

// NewRouter wires the read-only endpoints:
//
//	GET /health           liveness
//	GET /status           loop snapshot, 503 once the loop stopped
//	GET /history?limit=N  recent notifications, 404 without storage
//	GET /events           server-sent loop events, 404 without an event source
//	GET /metrics          Prometheus exposition, when a gatherer is set
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if d.Goroutines != nil {
			body["goroutines"] = d.Goroutines()
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/status", func(c *gin.Context) {
		snap := d.Monitor.Snapshot()
		code := http.StatusOK
		if !snap.Running {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"running":   snap.Running,
			"last_seen": snap.LastSeen(),
			"snapshot":  snap,
		})
	})

	r.GET("/history", func(c *gin.Context) {
		if d.History == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "history storage disabled"})
			return
		}
		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		entries, err := d.History.RecentNotifications(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
			return
		}
		if entries == nil {
			entries = []storage.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}
	if d.Pprof {
		mountPprof(r.Group("/debug/pprof"))
	}

	r.GET("/events", func(c *gin.Context) {
		if d.Events == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "event stream disabled"})
			return
		}
		streamEvents(c, d.Monitor, d.Events)
	})

	return r
}

// streamEvents sends the current snapshot, then every loop event until the
// client disconnects or the server shuts down. Each write carries a
// deadline so a stalled client cannot pin the handler.
func streamEvents(c *gin.Context, mon SnapshotSource, src EventSource) {
	ch, unsubscribe := src.Subscribe(eventBuffer)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	rc := http.NewResponseController(c.Writer)
	deadlines := true
	send := func(name string, data any) bool {
		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				deadlines = false
			}
		}
		c.SSEvent(name, data)
		c.Writer.Flush()
		return c.Request.Context().Err() == nil
	}

	if !send("snapshot", mon.Snapshot()) {
		return
	}
	for {
		select {
		case e, ok := <-ch:
			if !ok || !send(e.Type, e) {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
