package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestParseListingType(t *testing.T) {
	typ, err := ParseListingType(" hotel ")
	require.NoError(t, err)
	assert.Equal(t, ListingTypeHotel, typ)

	_, err = ParseListingType("boat")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestInventoryItem_CheckReservable(t *testing.T) {
	flight := InventoryItem{Type: ListingTypeFlight, ID: "FL1", Capacity: 2, IsActive: true}
	car := InventoryItem{Type: ListingTypeCar, ID: "CR1", Capacity: 1, IsActive: true}

	testCases := []struct {
		name     string
		item     InventoryItem
		quantity int
		want     error
	}{
		{name: "enough seats", item: flight, quantity: 2},
		{name: "zero quantity", item: flight, quantity: 0, want: ErrInvalidQuantity},
		{name: "negative quantity", item: flight, quantity: -1, want: ErrInvalidQuantity},
		{name: "oversell", item: flight, quantity: 3, want: ErrInsufficientCapacity},
		{name: "inactive", item: InventoryItem{Type: ListingTypeFlight, ID: "FL2", Capacity: 5}, quantity: 1, want: ErrInvalidReference},
		{name: "car single unit", item: car, quantity: 1},
		{name: "car two units", item: car, quantity: 2, want: ErrInvalidQuantity},
		{name: "car taken", item: InventoryItem{Type: ListingTypeCar, ID: "CR2", IsActive: true}, quantity: 1, want: ErrInsufficientCapacity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.CheckReservable(tc.quantity)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestInventoryItem_Validate(t *testing.T) {
	assert.NoError(t, InventoryItem{Type: ListingTypeHotel, ID: "HT1", Capacity: 5, TotalCapacity: 10}.Validate())
	assert.ErrorIs(t, InventoryItem{Type: ListingTypeHotel}.Validate(), ErrInvalidListing)
	assert.ErrorIs(t, InventoryItem{Type: ListingTypeHotel, ID: "HT1", UnitPriceCents: -1}.Validate(), ErrInvalidListing)
	assert.ErrorIs(t, InventoryItem{Type: ListingTypeHotel, ID: "HT1", Capacity: 11, TotalCapacity: 10}.Validate(), ErrInvalidListing)
	assert.ErrorIs(t, InventoryItem{Type: ListingTypeCar, ID: "CR1", Capacity: 2}.Validate(), ErrInvalidListing)
}

func TestCarStatus(t *testing.T) {
	assert.Equal(t, CarAvailable, InventoryItem{Type: ListingTypeCar, Capacity: 1}.CarStatus())
	assert.Equal(t, CarUnavailable, InventoryItem{Type: ListingTypeCar}.CarStatus())
}

func TestTotalPrice(t *testing.T) {
	start := date(2026, 3, 1)

	flight := InventoryItem{Type: ListingTypeFlight, UnitPriceCents: 12_000}
	total, err := TotalPrice(flight, 3, start, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(36_000), total)

	hotel := InventoryItem{Type: ListingTypeHotel, UnitPriceCents: 10_000}
	total, err = TotalPrice(hotel, 1, start, datePtr(2026, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), total)

	total, err = TotalPrice(hotel, 2, start, datePtr(2026, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), total)

	car := InventoryItem{Type: ListingTypeCar, UnitPriceCents: 4_500}
	total, err = TotalPrice(car, 1, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), datePtr(2026, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), total)

	_, err = TotalPrice(hotel, 1, start, nil)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = TotalPrice(hotel, 1, start, datePtr(2026, 3, 1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestNewBookingID(t *testing.T) {
	now := time.UnixMilli(1767225600000)
	id := NewBookingID(now)
	assert.Regexp(t, regexp.MustCompile(`^BK-1767225600000-[0-9A-F]{6}$`), id)
	assert.NotEqual(t, id, NewBookingID(now))
}

func TestPartitionByTimeframe(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	bookings := []Booking{
		{BookingID: "past-1", StartDate: date(2026, 4, 1), EndDate: datePtr(2026, 4, 3)},
		{BookingID: "past-2", StartDate: date(2026, 5, 1), EndDate: datePtr(2026, 5, 9)},
		{BookingID: "ends-today", StartDate: date(2026, 5, 8), EndDate: datePtr(2026, 5, 10)},
		{BookingID: "starts-today", StartDate: date(2026, 5, 10), EndDate: datePtr(2026, 5, 12)},
		{BookingID: "open-ended", StartDate: date(2026, 5, 1)},
		{BookingID: "future-2", StartDate: date(2026, 7, 1)},
		{BookingID: "future-1", StartDate: date(2026, 6, 1), EndDate: datePtr(2026, 6, 3)},
	}

	tf := PartitionByTimeframe(bookings, now)

	ids := func(list []Booking) []string {
		out := make([]string, 0, len(list))
		for _, b := range list {
			out = append(out, b.BookingID)
		}
		return out
	}
	assert.Equal(t, []string{"past-2", "past-1"}, ids(tf.Past))
	assert.Equal(t, []string{"open-ended", "ends-today", "starts-today"}, ids(tf.Current))
	assert.Equal(t, []string{"future-1", "future-2"}, ids(tf.Future))
}

func TestBookingStatus(t *testing.T) {
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.False(t, BookingStatusPending.IsTerminal())

	st, err := ParseBookingStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusConfirmed, st)
	_, err = ParseBookingStatus("lost")
	assert.Error(t, err)
}
