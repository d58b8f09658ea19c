package cache

import (
	"strings"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

const generationKey = "cache:generation"

func ListingKey(t domain.ListingType, id string) string {
	return "listing:" + string(t) + ":" + id
}

// ListingsPrefix covers every aggregate list of one listing type.
func ListingsPrefix(t domain.ListingType) string {
	return "listings:" + string(t) + ":"
}

func ListingsKey(t domain.ListingType, activeOnly bool) string {
	if activeOnly {
		return ListingsPrefix(t) + "active"
	}
	return ListingsPrefix(t) + "all"
}

func BookingKey(bookingID string) string {
	return "booking:" + bookingID
}

// UserBookingsPrefix covers every cached booking list of one user.
func UserBookingsPrefix(userID string) string {
	return "bookings:user:" + userID + ":"
}

func UserBookingsKey(userID string, status domain.BookingStatus, t domain.ListingType) string {
	return UserBookingsPrefix(userID) + orAll(string(status)) + ":" + orAll(string(t))
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// matchPrefix builds a SCAN pattern matching keys that start with prefix literally.
func matchPrefix(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}
