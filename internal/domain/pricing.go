package domain

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// TruncateDay drops the time of day in UTC.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole UTC calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(TruncateDay(end).Sub(TruncateDay(start)) / day)
}

// TotalPrice computes the frozen booking price. Flights charge per passenger,
// hotels per room and night, cars per rental day.
func TotalPrice(item InventoryItem, quantity int, start time.Time, end *time.Time) (int64, error) {
	switch item.Type {
	case ListingTypeFlight:
		return item.UnitPriceCents * int64(quantity), nil
	case ListingTypeHotel, ListingTypeCar:
		if start.IsZero() || end == nil {
			return 0, fmt.Errorf("%w: %s bookings need start and end dates", ErrInvalidDateRange, item.Type)
		}
		days := DaysBetween(start, *end)
		if days < 1 {
			return 0, fmt.Errorf("%w: end date must be after start date", ErrInvalidDateRange)
		}
		return item.UnitPriceCents * int64(quantity) * int64(days), nil
	}
	return 0, fmt.Errorf("%w: unknown listing type %q", ErrInvalidReference, item.Type)
}
