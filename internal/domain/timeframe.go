package domain

import (
	"sort"
	"time"
)

type Timeframe struct {
	Past    []Booking `json:"past"`
	Current []Booking `json:"current"`
	Future  []Booking `json:"future"`
}

// PartitionByTimeframe splits bookings against now at UTC date granularity.
// A booking without an end date is current from its start date on. Past bookings
// come latest-ended first, the others by start date.
func PartitionByTimeframe(bookings []Booking, now time.Time) Timeframe {
	today := TruncateDay(now)
	tf := Timeframe{
		Past:    make([]Booking, 0),
		Current: make([]Booking, 0),
		Future:  make([]Booking, 0),
	}
	for _, b := range bookings {
		start := TruncateDay(b.StartDate)
		switch {
		case start.After(today):
			tf.Future = append(tf.Future, b)
		case b.EndDate != nil && TruncateDay(*b.EndDate).Before(today):
			tf.Past = append(tf.Past, b)
		default:
			tf.Current = append(tf.Current, b)
		}
	}
	sort.SliceStable(tf.Past, func(i, j int) bool {
		return tf.Past[i].EndDate.After(*tf.Past[j].EndDate)
	})
	sort.SliceStable(tf.Current, func(i, j int) bool {
		return tf.Current[i].StartDate.Before(tf.Current[j].StartDate)
	})
	sort.SliceStable(tf.Future, func(i, j int) bool {
		return tf.Future[i].StartDate.Before(tf.Future[j].StartDate)
	})
	return tf
}
