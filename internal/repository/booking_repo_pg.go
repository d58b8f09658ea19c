package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

const searchLimit = 100

const bookingColumns = `booking_id, user_id, booking_type, reference_id, provider_name, start_date, end_date,
	quantity, unit_price_cents, total_price_cents, status, payment_status, traveler_details, special_requests,
	created_at, updated_at`

const selectBookingByID = "SELECT " + bookingColumns + " FROM bookings WHERE booking_id = $1"

type BookingRepository interface {
	GetByID(ctx context.Context, bookingID string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID string, filter domain.BookingFilter) ([]domain.Booking, error)
	Search(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	CompleteEndedBefore(ctx context.Context, day time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) GetByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, selectBookingByID, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, bookingID)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get booking %s: %w", bookingID, err))
	}
	return b, nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID string, filter domain.BookingFilter) ([]domain.Booking, error) {
	filter.UserID = userID
	where, args := buildWhere(filter)
	return r.queryBookings(ctx, "SELECT "+bookingColumns+" FROM bookings"+where+" ORDER BY created_at DESC", args...)
}

// Search returns at most 100 bookings, newest first.
func (r *PGBookingRepository) Search(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	where, args := buildWhere(filter)
	q := fmt.Sprintf("SELECT %s FROM bookings%s ORDER BY created_at DESC LIMIT %d", bookingColumns, where, searchLimit)
	return r.queryBookings(ctx, q, args...)
}

// CompleteEndedBefore moves CONFIRMED bookings whose end date lies before day to COMPLETED.
func (r *PGBookingRepository) CompleteEndedBefore(ctx context.Context, day time.Time) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `UPDATE bookings SET status = $1, updated_at = now()
		WHERE status = $2 AND COALESCE(end_date, start_date) < $3
		RETURNING `+bookingColumns,
		string(domain.BookingStatusCompleted), string(domain.BookingStatusConfirmed), domain.TruncateDay(day))
}

func (r *PGBookingRepository) queryBookings(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("query bookings: %w", err))
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return bookings, nil
}

func buildWhere(f domain.BookingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Type != "" {
		add("booking_type = $%d", string(f.Type))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.FromDate != nil {
		add("start_date >= $%d", domain.TruncateDay(*f.FromDate))
	}
	if f.ToDate != nil {
		add("start_date <= $%d", domain.TruncateDay(*f.ToDate))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanBooking(row interface{ Scan(dest ...any) error }) (*domain.Booking, error) {
	var (
		b             domain.Booking
		typ           string
		status        string
		paymentStatus string
		details       []byte
	)
	if err := row.Scan(&b.BookingID, &b.UserID, &typ, &b.ReferenceID, &b.ProviderName, &b.StartDate, &b.EndDate,
		&b.Quantity, &b.UnitPriceCents, &b.TotalPriceCents, &status, &paymentStatus, &details, &b.SpecialRequests,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Type = domain.ListingType(typ)
	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if len(details) > 0 {
		b.TravelerDetails = details
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
