package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"provermon/internal/storage"
	logx "provermon/pkg/logx"
)

// Recorder appends every delivery attempt of the wrapped sink to the
// history store. Store failures are logged and never change the result.
type Recorder struct {
	next  Notifier
	store storage.Store
	log   logx.Logger
	now   func() time.Time
}

func NewRecorder(next Notifier, store storage.Store, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{next: next, store: store, log: log, now: time.Now}
}

func (r *Recorder) Name() string { return channelName(r.next) }

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	err := r.next.Send(ctx, msg)
	if r.store == nil || msg.Empty() {
		return err
	}

	e := storage.Entry{
		ID:      uuid.NewString(),
		At:      r.now().UTC(),
		Kind:    string(msg.Kind),
		Key:     msg.Key,
		Channel: r.Name(),
		OK:      err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	// Record even when ctx is already done (e.g. during shutdown).
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if serr := r.store.AppendNotification(sctx, e); serr != nil {
		r.log.Warn("history append failed", logx.Err(serr), logx.String("kind", e.Kind))
	}
	return err
}
