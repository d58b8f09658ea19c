package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

// InventoryRepository serves listing reads and admin writes outside the reservation transaction.
type InventoryRepository interface {
	List(ctx context.Context, typ domain.ListingType, activeOnly bool) ([]domain.InventoryItem, error)
	GetByID(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error)
	Create(ctx context.Context, item *domain.InventoryItem) error
	SetActive(ctx context.Context, typ domain.ListingType, id string, active bool) error
}

type PGInventoryRepository struct {
	db DB
}

func NewInventoryRepository(db DB) InventoryRepository {
	return &PGInventoryRepository{db: db}
}

func (r *PGInventoryRepository) List(ctx context.Context, typ domain.ListingType, activeOnly bool) ([]domain.InventoryItem, error) {
	tbl, err := tableFor(typ)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, tbl.selectAll(activeOnly))
	if err != nil {
		return nil, classify(fmt.Errorf("list %s: %w", tbl.name, err))
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0)
	for rows.Next() {
		item, err := scanItem(rows, typ)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func (r *PGInventoryRepository) GetByID(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error) {
	tbl, err := tableFor(typ)
	if err != nil {
		return nil, err
	}

	item, err := scanItem(r.db.QueryRow(ctx, tbl.selectByID(false), id), typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrListingNotFound, typ, id)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get %s %s: %w", typ, id, err))
	}
	return item, nil
}

func (r *PGInventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	tbl, err := tableFor(item.Type)
	if err != nil {
		return err
	}
	if item.Type == domain.ListingTypeCar {
		item.TotalCapacity = 1
	}

	err = r.db.QueryRow(ctx, tbl.insert(), tbl.insertArgs(item)...).Scan(&item.CreatedAt, &item.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s", domain.ErrListingExists, item.Type, item.ID)
	}
	if err != nil {
		return classify(fmt.Errorf("create %s %s: %w", item.Type, item.ID, err))
	}
	return nil
}

func (r *PGInventoryRepository) SetActive(ctx context.Context, typ domain.ListingType, id string, active bool) error {
	tbl, err := tableFor(typ)
	if err != nil {
		return err
	}

	cmd, err := r.db.Exec(ctx, tbl.setActive(), id, active)
	if err != nil {
		return classify(fmt.Errorf("update %s %s: %w", typ, id, err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrListingNotFound, typ, id)
	}
	return nil
}

var _ InventoryRepository = (*PGInventoryRepository)(nil)
