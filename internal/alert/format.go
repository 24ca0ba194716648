package alert

import (
	"fmt"
	"strings"
	"time"

	"provermon/internal/notifier"
	"provermon/internal/prover"
)

const (
	DefaultTitle        = "Succinct Prover"
	DefaultExplorerBase = "https://explorer.succinct.xyz"

	noDataText = "No ASSIGNED or FULFILLED orders found"
)

// Embed colors.
const (
	ColorAssigned  = 0x3498DB
	ColorFulfilled = 0x2ECC71
	ColorNoData    = 0x95A5A6
)

type Config struct {
	Title        string
	ExplorerBase string
	// Prover is the monitored address as configured; it is used verbatim
	// in explorer links.
	Prover string
}

// Formatter builds messages. It is stateless apart from its clock.
type Formatter struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Formatter {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock is New with an injected clock for relative times.
func NewWithClock(cfg Config, now func() time.Time) *Formatter {
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	cfg.ExplorerBase = strings.TrimRight(strings.TrimSpace(cfg.ExplorerBase), "/")
	if cfg.ExplorerBase == "" {
		cfg.ExplorerBase = DefaultExplorerBase
	}
	cfg.Prover = strings.TrimSpace(cfg.Prover)
	if now == nil {
		now = time.Now
	}
	return &Formatter{cfg: cfg, now: now}
}

// Change is sent when a new state is observed.
func (f *Formatter) Change(r *prover.Record) notifier.Message {
	return f.recordMessage(notifier.KindChange, f.cfg.Title, r)
}

// Check is the one-shot variant of Change; it is not deduplicated.
func (f *Formatter) Check(r *prover.Record) notifier.Message {
	if r == nil {
		m := f.NoData()
		m.Kind = notifier.KindCheck
		return m
	}
	return f.recordMessage(notifier.KindCheck, f.cfg.Title, r)
}

// Heartbeat reports the current record, or no data when r is nil.
func (f *Formatter) Heartbeat(r *prover.Record) notifier.Message {
	title := "Heartbeat · " + f.cfg.Title
	if r == nil {
		return f.noData(notifier.KindNoData, title)
	}
	return f.recordMessage(notifier.KindHeartbeat, title, r)
}

// NoData is sent when neither an assigned nor a fulfilled order exists.
func (f *Formatter) NoData() notifier.Message {
	return f.noData(notifier.KindNoData, f.cfg.Title)
}

// Startup announces that monitoring began.
func (f *Formatter) Startup(poll time.Duration, heartbeat string) notifier.Message {
	return notifier.Message{
		Kind: notifier.KindStartup,
		Text: fmt.Sprintf("**%s** monitor started for [%s](%s)\nPolling every %s, heartbeat every %s",
			f.cfg.Title, f.cfg.Prover, f.ProverURL(), poll, heartbeat),
	}
}

func (f *Formatter) OrderURL(id string) string { return f.cfg.ExplorerBase + "/order/" + id }
func (f *Formatter) ProverURL() string         { return f.cfg.ExplorerBase + "/prover/" + f.cfg.Prover }

func (f *Formatter) recordMessage(kind notifier.Kind, title string, r *prover.Record) notifier.Message {
	at, ok := r.LastActivity()
	order := "N/A"
	if r.ID != "" {
		order = fmt.Sprintf("[View order](%s)", f.OrderURL(r.ID))
	}
	return notifier.Message{
		Kind: kind,
		Key:  r.Key().String(),
		Embeds: []notifier.Embed{{
			Title:       title,
			Description: fmt.Sprintf("Status: **%s**\nLast order: **%s**", r.Status, MinsAgo(at, ok, f.now())),
			Color:       colorOf(r.Status),
			Fields: []notifier.EmbedField{
				{Name: "Order", Value: order, Inline: true},
				f.proverField(),
			},
		}},
	}
}

func (f *Formatter) noData(kind notifier.Kind, title string) notifier.Message {
	return notifier.Message{
		Kind: kind,
		Embeds: []notifier.Embed{{
			Title:       title,
			Description: noDataText,
			Color:       ColorNoData,
			Fields:      []notifier.EmbedField{f.proverField()},
		}},
	}
}

func (f *Formatter) proverField() notifier.EmbedField {
	return notifier.EmbedField{Name: "Prover", Value: fmt.Sprintf("[View prover](%s)", f.ProverURL()), Inline: true}
}

func colorOf(s prover.Status) int {
	switch s {
	case prover.StatusAssigned:
		return ColorAssigned
	case prover.StatusFulfilled:
		return ColorFulfilled
	default:
		return ColorNoData
	}
}

// MinsAgo renders the time since at relative to now. ok=false yields
// "unknown"; future times count as zero.
func MinsAgo(at time.Time, ok bool, now time.Time) string {
	if !ok {
		return "unknown"
	}
	diff := now.Unix() - at.Unix()
	if diff < 0 {
		diff = 0
	}
	mins := diff / 60
	if mins < 60 {
		return fmt.Sprintf("%d mins ago", mins)
	}
	return fmt.Sprintf("%dh %dm ago", mins/60, mins%60)
}
