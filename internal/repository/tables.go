package repository

import (
	"fmt"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

// itemTable maps one inventory table onto domain.InventoryItem columns.
type itemTable struct {
	name     string
	id       string
	provider string
	title    string
	location string
	price    string
	// capacity and total are select expressions; cars derive both from availability_status.
	capacity string
	total    string
}

const carCapacityExpr = "CASE WHEN availability_status = 'AVAILABLE' THEN 1 ELSE 0 END"

var itemTables = map[domain.ListingType]itemTable{
	domain.ListingTypeFlight: {
		name:     "flights",
		id:       "flight_id",
		provider: "airline_name",
		title:    "route",
		location: "departure_airport",
		price:    "ticket_price_cents",
		capacity: "available_seats",
		total:    "total_seats",
	},
	domain.ListingTypeHotel: {
		name:     "hotels",
		id:       "hotel_id",
		provider: "hotel_name",
		title:    "room_type",
		location: "city",
		price:    "price_per_night_cents",
		capacity: "available_rooms",
		total:    "total_rooms",
	},
	domain.ListingTypeCar: {
		name:     "cars",
		id:       "car_id",
		provider: "company_name",
		title:    "model",
		location: "pickup_location",
		price:    "daily_rental_price_cents",
		capacity: carCapacityExpr,
		total:    "1",
	},
}

func tableFor(t domain.ListingType) (itemTable, error) {
	tbl, ok := itemTables[t]
	if !ok {
		return itemTable{}, fmt.Errorf("%w: unknown listing type %q", domain.ErrInvalidReference, t)
	}
	return tbl, nil
}

func (t itemTable) columns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, is_active, created_at, updated_at",
		t.id, t.provider, t.title, t.location, t.price, t.capacity, t.total)
}

func (t itemTable) selectByID(forUpdate bool) string {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", t.columns(), t.name, t.id)
	if forUpdate {
		q += " FOR UPDATE"
	}
	return q
}

func (t itemTable) selectAll(activeOnly bool) string {
	q := fmt.Sprintf("SELECT %s FROM %s", t.columns(), t.name)
	if activeOnly {
		q += " WHERE is_active = TRUE"
	}
	return q + fmt.Sprintf(" ORDER BY %s", t.id)
}

// setCapacity writes an absolute capacity. The row must already be locked by the caller.
func (t itemTable) setCapacity() string {
	if t.name == "cars" {
		return `UPDATE cars SET availability_status = CASE WHEN $2::int > 0 THEN 'AVAILABLE' ELSE 'UNAVAILABLE' END, updated_at = now() WHERE car_id = $1`
	}
	return fmt.Sprintf("UPDATE %s SET %s = $2, updated_at = now() WHERE %s = $1", t.name, t.capacity, t.id)
}

func (t itemTable) insert() string {
	// cars take seven arguments, the others an eighth for the total capacity
	if t.name == "cars" {
		return `INSERT INTO cars (car_id, company_name, model, pickup_location, daily_rental_price_cents, availability_status, is_active)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $6::int > 0 THEN 'AVAILABLE' ELSE 'UNAVAILABLE' END, $7)
		RETURNING created_at, updated_at`
	}
	return fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $8, $7)
		RETURNING created_at, updated_at`,
		t.name, t.id, t.provider, t.title, t.location, t.price, t.capacity, t.total)
}

func (t itemTable) insertArgs(item *domain.InventoryItem) []any {
	args := []any{item.ID, item.ProviderName, item.Title, item.Location, item.UnitPriceCents, item.Capacity, item.IsActive}
	if t.name != "cars" {
		args = append(args, item.TotalCapacity)
	}
	return args
}

func (t itemTable) setActive() string {
	return fmt.Sprintf("UPDATE %s SET is_active = $2, updated_at = now() WHERE %s = $1", t.name, t.id)
}

func scanItem(row interface{ Scan(dest ...any) error }, typ domain.ListingType) (*domain.InventoryItem, error) {
	item := domain.InventoryItem{Type: typ}
	if err := row.Scan(&item.ID, &item.ProviderName, &item.Title, &item.Location, &item.UnitPriceCents,
		&item.Capacity, &item.TotalCapacity, &item.IsActive, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}
