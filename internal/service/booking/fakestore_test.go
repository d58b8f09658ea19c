package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/repository"
)

// fakeStore keeps committed rows in memory. Row locks are per-row mutexes held by a
// transaction until it commits or rolls back, like SELECT ... FOR UPDATE.
type fakeStore struct {
	mu       sync.Mutex
	items    map[string]domain.InventoryItem
	bookings map[string]domain.Booking
	locks    map[string]*sync.Mutex

	txCalls       int
	transientLeft int
	insertErr     error
}

func newFakeStore(items ...domain.InventoryItem) *fakeStore {
	s := &fakeStore{
		items:    make(map[string]domain.InventoryItem),
		bookings: make(map[string]domain.Booking),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, it := range items {
		s.items[itemKey(it.Type, it.ID)] = it
	}
	return s
}

func itemKey(t domain.ListingType, id string) string { return "item:" + string(t) + ":" + id }

func bookingRowKey(id string) string { return "booking:" + id }

func (s *fakeStore) item(t domain.ListingType, id string) domain.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[itemKey(t, id)]
}

func (s *fakeStore) setItem(it domain.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemKey(it.Type, it.ID)] = it
}

func (s *fakeStore) putBooking(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.BookingID] = b
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCalls
}

func (s *fakeStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	s.txCalls++
	if s.transientLeft > 0 {
		s.transientLeft--
		s.mu.Unlock()
		return fmt.Errorf("%w: deadlock detected", domain.ErrTransientStore)
	}
	s.mu.Unlock()

	tx := &fakeTx{
		store:    s,
		held:     make(map[string]*sync.Mutex),
		items:    make(map[string]domain.InventoryItem),
		bookings: make(map[string]domain.Booking),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type fakeTx struct {
	store    *fakeStore
	held     map[string]*sync.Mutex
	items    map[string]domain.InventoryItem
	bookings map[string]domain.Booking
}

func (t *fakeTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	l := t.store.rowLock(key)
	l.Lock()
	t.held[key] = l
}

func (t *fakeTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func (t *fakeTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k, it := range t.items {
		t.store.items[k] = it
	}
	for id, b := range t.bookings {
		t.store.bookings[id] = b
	}
}

func (t *fakeTx) LockItem(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error) {
	key := itemKey(typ, id)
	t.lock(key)
	if it, ok := t.items[key]; ok {
		return &it, nil
	}

	t.store.mu.Lock()
	it, ok := t.store.items[key]
	t.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrInvalidReference, typ, id)
	}
	return &it, nil
}

func (t *fakeTx) SetCapacity(ctx context.Context, typ domain.ListingType, id string, capacity int) error {
	key := itemKey(typ, id)
	if _, ok := t.held[key]; !ok {
		return fmt.Errorf("capacity write on %s without row lock", key)
	}
	if capacity < 0 {
		return domain.ErrInsufficientCapacity
	}
	it, err := t.LockItem(ctx, typ, id)
	if err != nil {
		return err
	}
	it.Capacity = capacity
	t.items[key] = *it
	return nil
}

func (t *fakeTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	t.bookings[b.BookingID] = *b
	return nil
}

func (t *fakeTx) LockBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	t.lock(bookingRowKey(bookingID))
	if b, ok := t.bookings[bookingID]; ok {
		return &b, nil
	}

	t.store.mu.Lock()
	b, ok := t.store.bookings[bookingID]
	t.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, bookingID)
	}
	return &b, nil
}

func (t *fakeTx) UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (time.Time, error) {
	if _, ok := t.held[bookingRowKey(bookingID)]; !ok {
		return time.Time{}, fmt.Errorf("status write on %s without row lock", bookingID)
	}
	b, err := t.LockBooking(ctx, bookingID)
	if err != nil {
		return time.Time{}, err
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	t.bookings[bookingID] = *b
	return b.UpdatedAt, nil
}

// BookingRepository reads of committed rows.

func (s *fakeStore) GetByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, bookingID)
	}
	return &b, nil
}

func (s *fakeStore) ListByUser(ctx context.Context, userID string, filter domain.BookingFilter) ([]domain.Booking, error) {
	filter.UserID = userID
	return s.Search(ctx, filter)
}

func (s *fakeStore) Search(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && b.Type != filter.Type {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out, nil
}

func (s *fakeStore) CompleteEndedBefore(ctx context.Context, day time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := domain.TruncateDay(day)
	out := make([]domain.Booking, 0)
	for id, b := range s.bookings {
		end := b.StartDate
		if b.EndDate != nil {
			end = *b.EndDate
		}
		if b.Status == domain.BookingStatusConfirmed && end.Before(today) {
			b.Status = domain.BookingStatusCompleted
			s.bookings[id] = b
			out = append(out, b)
		}
	}
	return out, nil
}

var (
	_ repository.Store             = (*fakeStore)(nil)
	_ repository.BookingRepository = (*fakeStore)(nil)
	_ repository.Tx                = (*fakeTx)(nil)
)
