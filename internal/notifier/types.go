package notifier

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrDelivery is returned when a destination rejects a message.
	ErrDelivery = errors.New("notification delivery failed")
	ErrNoSinks  = errors.New("no notification sinks configured")
)

// Kind classifies a message for history and logs.
type Kind string

const (
	KindStartup   Kind = "startup"
	KindChange    Kind = "change"
	KindHeartbeat Kind = "heartbeat"
	KindNoData    Kind = "no_data"
	KindCheck     Kind = "check"
)

// Message is a notification payload. Kind and Key are metadata and are
// never sent to the destination.
type Message struct {
	Text   string
	Embeds []Embed

	Kind Kind
	Key  string
}

// Empty reports whether there is nothing to deliver.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Text) == "" && len(m.Embeds) == 0
}

// Embed is a rich content block. Description and field values may contain
// **bold** and [text](url) markdown.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notifier delivers a message. Implementations make at most one delivery
// attempt per call.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Named is implemented by sinks that have a stable channel name.
type Named interface {
	Name() string
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

func channelName(n Notifier) string {
	if nn, ok := n.(Named); ok {
		return nn.Name()
	}
	return "unknown"
}
