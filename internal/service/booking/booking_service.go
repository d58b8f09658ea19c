package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/notifier"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Domenick1991/travelbooking/internal/service/booking"

type BookingUseCase interface {
	Reserve(ctx context.Context, input ReserveInput) (*domain.Booking, error)
	Confirm(ctx context.Context, bookingID string) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID string, filter domain.BookingFilter) ([]domain.Booking, error)
	GetBookingsByTimeframe(ctx context.Context, userID string) (*domain.Timeframe, error)
	SearchBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	CompleteEndedBookings(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

type Cache interface {
	cache.Reader
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, prefix string) error
}

type Notifier interface {
	Publish(ctx context.Context, topic string, payload any)
}

type ReserveInput struct {
	UserID      string             `json:"user_id"`
	Type        domain.ListingType `json:"type"`
	ReferenceID string             `json:"reference_id"`
	Quantity    int                `json:"quantity"`
	// StartDate defaults to today for flights. Hotels and cars need both dates.
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	TravelerDetails json.RawMessage `json:"traveler_details,omitempty"`
	SpecialRequests string          `json:"special_requests,omitempty"`
}

type BookingService struct {
	store       repository.Store
	bookings    repository.BookingRepository
	cache       Cache
	notifier    Notifier
	log         *zap.Logger
	tracer      trace.Tracer
	retry       retry.Config
	bookingsTTL time.Duration
	now         func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithCache(c Cache, ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = c
		s.bookingsTTL = ttl
	}
}

func WithNotifier(n Notifier) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = n
	}
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRetry(cfg retry.Config) BookingServiceOption {
	return func(s *BookingService) {
		s.retry = cfg
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(store repository.Store, bookings repository.BookingRepository, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		store:       store,
		bookings:    bookings,
		log:         zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
		retry:       retry.DefaultConfig(),
		bookingsTTL: 5 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Reserve takes quantity units of one listing and records a PENDING booking in a
// single transaction holding the listing's row lock.
func (s *BookingService) Reserve(ctx context.Context, input ReserveInput) (_ *domain.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reserve", trace.WithAttributes(
		attribute.String("listing.type", string(input.Type)),
		attribute.String("listing.id", input.ReferenceID),
		attribute.Int("booking.quantity", input.Quantity),
	))
	defer func() { endSpan(span, err) }()

	if err := s.normalize(&input); err != nil {
		return nil, err
	}

	var booking *domain.Booking
	err = s.inTx(ctx, "reserve", func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.LockItem(ctx, input.Type, input.ReferenceID)
		if err != nil {
			return err
		}
		if err := item.CheckReservable(input.Quantity); err != nil {
			return err
		}

		total, err := domain.TotalPrice(*item, input.Quantity, input.StartDate, input.EndDate)
		if err != nil {
			return err
		}

		if err := tx.SetCapacity(ctx, item.Type, item.ID, item.Capacity-input.Quantity); err != nil {
			return err
		}

		b := &domain.Booking{
			BookingID:       domain.NewBookingID(s.now()),
			UserID:          input.UserID,
			Type:            item.Type,
			ReferenceID:     item.ID,
			ProviderName:    item.ProviderName,
			StartDate:       input.StartDate,
			EndDate:         input.EndDate,
			Quantity:        input.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			TotalPriceCents: total,
			Status:          domain.BookingStatusPending,
			PaymentStatus:   domain.PaymentStatusPending,
			TravelerDetails: input.TravelerDetails,
			SpecialRequests: input.SpecialRequests,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("booking.id", booking.BookingID))
	s.invalidateAfterWrite(ctx, "reserve", booking)
	s.publish(ctx, notifier.TopicBookingCreated, booking)

	s.log.Info("booking reserved",
		zap.String("booking_id", booking.BookingID),
		zap.String("type", string(booking.Type)),
		zap.String("reference_id", booking.ReferenceID),
		zap.Int("quantity", booking.Quantity),
		zap.Int64("total_price_cents", booking.TotalPriceCents),
	)
	return booking, nil
}

// Cancel marks the booking CANCELLED and gives its units back to the listing.
// A second cancel fails with domain.ErrAlreadyCancelled.
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (_ *domain.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("%w: empty booking id", domain.ErrBookingNotFound)
	}

	var booking *domain.Booking
	err = s.inTx(ctx, "cancel", func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case domain.BookingStatusCancelled:
			return fmt.Errorf("%w: %s", domain.ErrAlreadyCancelled, bookingID)
		case domain.BookingStatusCompleted:
			return fmt.Errorf("%w: %s is completed", domain.ErrBookingNotCancellable, bookingID)
		}

		updatedAt, err := tx.UpdateBookingStatus(ctx, bookingID, domain.BookingStatusCancelled)
		if err != nil {
			return err
		}

		item, err := tx.LockItem(ctx, b.Type, b.ReferenceID)
		if err != nil {
			return err
		}
		if err := tx.SetCapacity(ctx, item.Type, item.ID, item.Capacity+b.Quantity); err != nil {
			return err
		}

		b.Status = domain.BookingStatusCancelled
		b.UpdatedAt = updatedAt
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("listing.id", booking.ReferenceID))
	s.invalidateAfterWrite(ctx, "cancel", booking)
	s.publish(ctx, notifier.TopicBookingCancelled, booking)

	s.log.Info("booking cancelled",
		zap.String("booking_id", booking.BookingID),
		zap.String("reference_id", booking.ReferenceID),
		zap.Int("restored", booking.Quantity),
	)
	return booking, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Inventory is untouched.
func (s *BookingService) Confirm(ctx context.Context, bookingID string) (_ *domain.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Confirm", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer func() { endSpan(span, err) }()

	var booking *domain.Booking
	err = s.inTx(ctx, "confirm", func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending {
			return fmt.Errorf("%w: %s is %s", domain.ErrBookingNotPending, bookingID, b.Status)
		}

		updatedAt, err := tx.UpdateBookingStatus(ctx, bookingID, domain.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		b.Status = domain.BookingStatusConfirmed
		b.UpdatedAt = updatedAt
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBookingKeys(ctx, "confirm", booking)
	s.publish(ctx, notifier.TopicBookingConfirmed, booking)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return cache.ReadThrough(ctx, s.reader(), cache.BookingKey(bookingID), s.bookingsTTL,
		func(ctx context.Context) (*domain.Booking, error) {
			return s.bookings.GetByID(ctx, bookingID)
		})
}

// ListUserBookings returns the user's bookings, newest first. Only Type and Status
// of filter apply.
func (s *BookingService) ListUserBookings(ctx context.Context, userID string, filter domain.BookingFilter) ([]domain.Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidReference)
	}
	key := cache.UserBookingsKey(userID, filter.Status, filter.Type)
	return cache.ReadThrough(ctx, s.reader(), key, s.bookingsTTL,
		func(ctx context.Context) ([]domain.Booking, error) {
			return s.bookings.ListByUser(ctx, userID, domain.BookingFilter{Type: filter.Type, Status: filter.Status})
		})
}

// GetBookingsByTimeframe is never cached since the partition moves with the clock.
func (s *BookingService) GetBookingsByTimeframe(ctx context.Context, userID string) (*domain.Timeframe, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidReference)
	}
	bookings, err := s.bookings.ListByUser(ctx, userID, domain.BookingFilter{})
	if err != nil {
		return nil, err
	}
	tf := domain.PartitionByTimeframe(bookings, s.now())
	return &tf, nil
}

func (s *BookingService) SearchBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return nil, fmt.Errorf("%w: to date before from date", domain.ErrInvalidDateRange)
	}
	return s.bookings.Search(ctx, filter)
}

// CompleteEndedBookings closes CONFIRMED bookings whose stay or trip ended before
// today. Completed bookings keep their units; the inventory is not restored.
func (s *BookingService) CompleteEndedBookings(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	completed, err := s.bookings.CompleteEndedBefore(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range completed {
		b := &completed[i]
		s.invalidateBookingKeys(ctx, "complete", b)
		s.publish(ctx, notifier.TopicBookingCompleted, b)
	}
	if len(completed) > 0 {
		s.log.Info("bookings completed", zap.Int("count", len(completed)))
	}
	return completed, nil
}

func (s *BookingService) normalize(in *ReserveInput) error {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ReferenceID = strings.TrimSpace(in.ReferenceID)
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidReference)
	}
	if in.ReferenceID == "" {
		return fmt.Errorf("%w: reference id is required", domain.ErrInvalidReference)
	}
	typ, err := domain.ParseListingType(string(in.Type))
	if err != nil {
		return err
	}
	in.Type = typ

	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", domain.ErrInvalidQuantity, in.Quantity)
	}
	if in.Type == domain.ListingTypeCar && in.Quantity != 1 {
		return fmt.Errorf("%w: car bookings take exactly one unit", domain.ErrInvalidQuantity)
	}

	if in.StartDate.IsZero() && in.Type == domain.ListingTypeFlight {
		in.StartDate = s.now()
	}
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", domain.ErrInvalidDateRange)
	}
	in.StartDate = domain.TruncateDay(in.StartDate)
	if in.EndDate == nil && in.Type != domain.ListingTypeFlight {
		return fmt.Errorf("%w: %s bookings need an end date", domain.ErrInvalidDateRange, in.Type)
	}
	if in.EndDate != nil {
		end := domain.TruncateDay(*in.EndDate)
		if end.Before(in.StartDate) {
			return fmt.Errorf("%w: end date before start date", domain.ErrInvalidDateRange)
		}
		in.EndDate = &end
	}
	return nil
}

// inTx retries the whole transaction while the store reports transient failures.
func (s *BookingService) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	onRetry := func(next int, err error, wait time.Duration) {
		s.log.Warn("transient store error, retrying transaction",
			zap.String("op", op),
			zap.Int("attempt", next),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}
	return retry.Do(ctx, s.retry, isTransient, onRetry, func(ctx context.Context) error {
		return s.store.InTx(ctx, fn)
	})
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTransientStore)
}

func (s *BookingService) reader() cache.Reader {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

// invalidateAfterWrite drops every cached view touched by a capacity change.
// It must only run after commit.
func (s *BookingService) invalidateAfterWrite(ctx context.Context, op string, b *domain.Booking) {
	if s.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.logInvalidation(op, b, s.cache.Invalidate(ctx, cache.ListingKey(b.Type, b.ReferenceID), cache.BookingKey(b.BookingID)))
	s.logInvalidation(op, b, s.cache.InvalidatePattern(ctx, cache.ListingsPrefix(b.Type)))
	s.logInvalidation(op, b, s.cache.InvalidatePattern(ctx, cache.UserBookingsPrefix(b.UserID)))
}

func (s *BookingService) invalidateBookingKeys(ctx context.Context, op string, b *domain.Booking) {
	if s.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.logInvalidation(op, b, s.cache.Invalidate(ctx, cache.BookingKey(b.BookingID)))
	s.logInvalidation(op, b, s.cache.InvalidatePattern(ctx, cache.UserBookingsPrefix(b.UserID)))
}

func (s *BookingService) logInvalidation(op string, b *domain.Booking, err error) {
	if err == nil {
		return
	}
	s.log.Error("cache invalidation failed after commit",
		zap.String("op", op),
		zap.String("booking_id", b.BookingID),
		zap.String("reference_id", b.ReferenceID),
		zap.Bool("stale_cache_risk", true),
		zap.Error(err),
	)
}

func (s *BookingService) publish(ctx context.Context, topic string, b *domain.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, topic, notifier.NewBookingEvent(b))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var _ BookingUseCase = (*BookingService)(nil)
