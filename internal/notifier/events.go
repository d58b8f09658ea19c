package notifier

import (
	"encoding/json"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

const (
	TopicBookingCreated     = "booking.created"
	TopicBookingConfirmed   = "booking.confirmed"
	TopicBookingCancelled   = "booking.cancelled"
	TopicBookingCompleted   = "booking.completed"
	TopicListingCreated     = "listing.created"
	TopicListingDeactivated = "listing.deactivated"
)

// Envelope is what goes over the wire for every event.
type Envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type BookingEvent struct {
	BookingID       string               `json:"booking_id"`
	UserID          string               `json:"user_id"`
	Type            domain.ListingType   `json:"type"`
	ReferenceID     string               `json:"reference_id"`
	ProviderName    string               `json:"provider_name,omitempty"`
	Quantity        int                  `json:"quantity"`
	TotalPriceCents int64                `json:"total_price_cents"`
	Status          domain.BookingStatus `json:"status"`
	StartDate       string               `json:"start_date"`
	EndDate         string               `json:"end_date,omitempty"`
}

func NewBookingEvent(b *domain.Booking) BookingEvent {
	ev := BookingEvent{
		BookingID:       b.BookingID,
		UserID:          b.UserID,
		Type:            b.Type,
		ReferenceID:     b.ReferenceID,
		ProviderName:    b.ProviderName,
		Quantity:        b.Quantity,
		TotalPriceCents: b.TotalPriceCents,
		Status:          b.Status,
		StartDate:       b.StartDate.Format(time.DateOnly),
	}
	if b.EndDate != nil {
		ev.EndDate = b.EndDate.Format(time.DateOnly)
	}
	return ev
}

func (e BookingEvent) EventKey() string { return e.BookingID }

type ListingEvent struct {
	Type     domain.ListingType `json:"type"`
	ID       string             `json:"id"`
	IsActive bool               `json:"is_active"`
}

func (e ListingEvent) EventKey() string { return string(e.Type) + ":" + e.ID }
