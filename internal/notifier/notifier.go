package notifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Publisher delivers one message to a transport destination (a kafka topic or an
// amqp routing key).
type Publisher interface {
	Publish(ctx context.Context, destination, key string, payload any) error
}

type Config struct {
	BookingDestination      string
	ListingDestination      string
	NotificationDestination string
	Timeout                 time.Duration
}

// Notifier publishes domain events after commit. Delivery is best effort: a
// failed publish is logged and never reaches the caller.
type Notifier struct {
	pub Publisher
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// New returns a Notifier. A nil pub makes every Publish a no-op.
func New(pub Publisher, cfg Config, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Notifier{pub: pub, cfg: cfg, log: log, now: time.Now}
}

func (n *Notifier) Publish(ctx context.Context, topic string, payload any) {
	if n == nil || n.pub == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn("event encode failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	env := Envelope{Event: topic, OccurredAt: n.now().UTC(), Data: data}

	var key string
	if k, ok := payload.(interface{ EventKey() string }); ok {
		key = k.EventKey()
	}

	// the request may already be finished; only the publish timeout bounds delivery
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.Timeout)
	defer cancel()

	for _, dest := range n.destinations(topic) {
		if err := n.pub.Publish(ctx, dest, key, env); err != nil {
			n.log.Warn("event publish failed",
				zap.String("topic", topic),
				zap.String("destination", dest),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

func (n *Notifier) destinations(topic string) []string {
	var dests []string
	switch {
	case strings.HasPrefix(topic, "booking."):
		dests = []string{n.cfg.BookingDestination, n.cfg.NotificationDestination}
	case strings.HasPrefix(topic, "listing."):
		dests = []string{n.cfg.ListingDestination}
	}

	out := dests[:0]
	for _, d := range dests {
		if d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return []string{topic}
	}
	return out
}
