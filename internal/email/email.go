package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/travelbooking/internal/notifier"
	"go.uber.org/zap"
)

// Sender turns booking events into customer notifications. Delivery is a structured
// log line; no mail provider is wired.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event string, b notifier.BookingEvent) error {
	subject, ok := subjects[event]
	if !ok {
		return nil
	}
	s.log.Info("send email",
		zap.String("user_id", b.UserID),
		zap.String("subject", fmt.Sprintf(subject, b.BookingID)),
		zap.String("type", string(b.Type)),
		zap.String("reference_id", b.ReferenceID),
		zap.Int("quantity", b.Quantity),
		zap.Int64("total_price_cents", b.TotalPriceCents),
		zap.String("start_date", b.StartDate),
	)
	return nil
}

// HandleEnvelope decodes a raw notification message and sends it.
func (s *Sender) HandleEnvelope(ctx context.Context, raw []byte) error {
	var env notifier.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	var b notifier.BookingEvent
	if err := json.Unmarshal(env.Data, &b); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return s.Send(ctx, env.Event, b)
}

var subjects = map[string]string{
	notifier.TopicBookingCreated:   "Booking %s received",
	notifier.TopicBookingConfirmed: "Booking %s confirmed",
	notifier.TopicBookingCancelled: "Booking %s cancelled",
	notifier.TopicBookingCompleted: "Thanks for travelling with us (%s)",
}
