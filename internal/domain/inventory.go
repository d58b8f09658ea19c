package domain

import (
	"fmt"
	"strings"
	"time"
)

type ListingType string

const (
	ListingTypeFlight ListingType = "FLIGHT"
	ListingTypeHotel  ListingType = "HOTEL"
	ListingTypeCar    ListingType = "CAR"
)

var ListingTypes = []ListingType{ListingTypeFlight, ListingTypeHotel, ListingTypeCar}

func ParseListingType(s string) (ListingType, error) {
	t := ListingType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case ListingTypeFlight, ListingTypeHotel, ListingTypeCar:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown listing type %q", ErrInvalidReference, s)
}

type CarAvailability string

const (
	CarAvailable   CarAvailability = "AVAILABLE"
	CarUnavailable CarAvailability = "UNAVAILABLE"
)

// InventoryItem is a bookable flight, hotel or car listing. For cars Capacity is
// 1 while the car is AVAILABLE and 0 otherwise.
type InventoryItem struct {
	Type           ListingType `json:"type"`
	ID             string      `json:"id"`
	ProviderName   string      `json:"provider_name"`
	Title          string      `json:"title"`
	Location       string      `json:"location"`
	Capacity       int         `json:"capacity"`
	TotalCapacity  int         `json:"total_capacity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (i InventoryItem) CarStatus() CarAvailability {
	if i.Capacity > 0 {
		return CarAvailable
	}
	return CarUnavailable
}

// CheckReservable reports why quantity units cannot be taken from the item, or nil.
func (i InventoryItem) CheckReservable(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !i.IsActive {
		return fmt.Errorf("%w: listing %s is not active", ErrInvalidReference, i.ID)
	}
	if i.Type == ListingTypeCar && quantity != 1 {
		return fmt.Errorf("%w: car bookings take exactly one unit", ErrInvalidQuantity)
	}
	if i.Capacity < quantity {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientCapacity, quantity, i.Capacity)
	}
	return nil
}

func (i InventoryItem) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidListing)
	}
	if i.UnitPriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidListing)
	}
	if i.Capacity < 0 || i.TotalCapacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidListing)
	}
	if i.TotalCapacity > 0 && i.Capacity > i.TotalCapacity {
		return fmt.Errorf("%w: capacity exceeds total capacity", ErrInvalidListing)
	}
	if i.Type == ListingTypeCar && i.Capacity > 1 {
		return fmt.Errorf("%w: a car listing holds a single unit", ErrInvalidListing)
	}
	return nil
}
