package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"pickupBoard/internal/toggle"
)

// Log writes every toggle notification to the structured log.
type Log struct {
	log *zerolog.Logger
}

func NewLog(log *zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, n toggle.Notification) {
	ev := l.log.Info()
	if n.Kind == toggle.Failure {
		ev = l.log.Warn()
	}
	ev.Str("kind", string(n.Kind)).
		Str("record_id", n.RecordID).
		Str("field", n.Field).
		Bool("value", n.Value).
		Msg(n.Message)
}

type Publisher interface {
	Publish(ctx context.Context, message []byte, delay time.Duration) error
}

// Broker fans toggle notifications out to the dashboards listening on the
// notifications exchange. Publish failures are logged and dropped.
type Broker struct {
	pub Publisher
	log *zerolog.Logger
}

func NewBroker(pub Publisher, log *zerolog.Logger) *Broker {
	return &Broker{pub: pub, log: log}
}

func (b *Broker) Notify(ctx context.Context, n toggle.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to marshal notification")
		return
	}
	if err := b.pub.Publish(ctx, payload, 0); err != nil {
		b.log.Warn().Err(err).Str("record_id", n.RecordID).Msg("notification not published")
	}
}

// Multi delivers to every notifier in order.
type Multi []toggle.Notifier

func (m Multi) Notify(ctx context.Context, n toggle.Notification) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}
