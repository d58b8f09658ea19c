package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Tx is the set of row-locking operations the reservation engine runs inside one transaction.
type Tx interface {
	LockItem(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error)
	SetCapacity(ctx context.Context, typ domain.ListingType, id string, capacity int) error
	InsertBooking(ctx context.Context, booking *domain.Booking) error
	LockBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (time.Time, error)
}

// Store runs fn in a transaction. Returning an error from fn rolls it back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type PGStore struct {
	db          DB
	lockTimeout time.Duration
}

func NewStore(db DB, lockTimeout time.Duration) *PGStore {
	return &PGStore{db: db, lockTimeout: lockTimeout}
}

func (s *PGStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return classify(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyCommit(err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockItem(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error) {
	tbl, err := tableFor(typ)
	if err != nil {
		return nil, err
	}

	item, err := scanItem(t.tx.QueryRow(ctx, tbl.selectByID(true), id), typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrInvalidReference, typ, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s %s: %w", typ, id, err)
	}
	return item, nil
}

func (t *pgTx) SetCapacity(ctx context.Context, typ domain.ListingType, id string, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: capacity of %s %s would become %d", domain.ErrInsufficientCapacity, typ, id, capacity)
	}
	tbl, err := tableFor(typ)
	if err != nil {
		return err
	}

	cmd, err := t.tx.Exec(ctx, tbl.setCapacity(), id, capacity)
	if err != nil {
		return fmt.Errorf("update capacity of %s %s: %w", typ, id, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrListingNotFound, typ, id)
	}
	return nil
}

func (t *pgTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	details := []byte(b.TravelerDetails)
	if len(details) == 0 {
		details = []byte("[]")
	}

	err := t.tx.QueryRow(ctx, `INSERT INTO bookings (booking_id, user_id, booking_type, reference_id, provider_name,
		start_date, end_date, quantity, unit_price_cents, total_price_cents, status, payment_status,
		traveler_details, special_requests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		b.BookingID, b.UserID, string(b.Type), b.ReferenceID, b.ProviderName,
		b.StartDate, b.EndDate, b.Quantity, b.UnitPriceCents, b.TotalPriceCents, string(b.Status), string(b.PaymentStatus),
		details, b.SpecialRequests).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking %s: %w", b.BookingID, err)
	}
	return nil
}

func (t *pgTx) LockBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, selectBookingByID+" FOR UPDATE", bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", bookingID, err)
	}
	return b, nil
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (time.Time, error) {
	var updatedAt time.Time
	err := t.tx.QueryRow(ctx, `UPDATE bookings SET status = $2, updated_at = now() WHERE booking_id = $1 RETURNING updated_at`,
		bookingID, string(status)).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, bookingID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("update booking %s: %w", bookingID, err)
	}
	return updatedAt, nil
}

var (
	_ Store = (*PGStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
