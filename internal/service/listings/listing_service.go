package listings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/notifier"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ListingUseCase interface {
	List(ctx context.Context, typ domain.ListingType) ([]domain.InventoryItem, error)
	Get(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error)
	Create(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	Deactivate(ctx context.Context, typ domain.ListingType, id string) error
}

type Cache interface {
	cache.Reader
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, prefix string) error
}

type Notifier interface {
	Publish(ctx context.Context, topic string, payload any)
}

// ListingService serves listing reads from the cache. Reservation code never reads
// capacity through here.
type ListingService struct {
	repo     repository.InventoryRepository
	cache    Cache
	notifier Notifier
	cacheTTL time.Duration
	log      *zap.Logger
	fills    singleflight.Group
}

func NewListingService(repo repository.InventoryRepository, c Cache, n Notifier, cacheTTL time.Duration, log *zap.Logger) *ListingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ListingService{repo: repo, cache: c, notifier: n, cacheTTL: cacheTTL, log: log}
}

// List returns the active listings of one type.
func (s *ListingService) List(ctx context.Context, typ domain.ListingType) ([]domain.InventoryItem, error) {
	return readCoalesced(ctx, s, cache.ListingsKey(typ, true), func(ctx context.Context) ([]domain.InventoryItem, error) {
		return s.repo.List(ctx, typ, true)
	})
}

func (s *ListingService) Get(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error) {
	item, err := readCoalesced(ctx, s, cache.ListingKey(typ, id), func(ctx context.Context) (*domain.InventoryItem, error) {
		return s.repo.GetByID(ctx, typ, id)
	})
	if err != nil {
		return nil, err
	}
	out := *item
	return &out, nil
}

// readCoalesced serves key from the cache and collapses concurrent misses into one
// load. Only callers that missed under the same cache generation share a load, so a
// read issued after an invalidation never gets a value loaded before it. The load is
// detached from the first caller's cancellation because other callers wait on it.
func readCoalesced[T any](ctx context.Context, s *ListingService, key string, load func(context.Context) (T, error)) (T, error) {
	c := s.reader()
	if c == nil {
		return load(ctx)
	}

	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	gen, err := c.Generation(ctx)
	if err != nil {
		return load(ctx)
	}

	v, err, _ := s.fills.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		fillCtx := context.WithoutCancel(ctx)
		value, err := load(fillCtx)
		if err != nil {
			return nil, err
		}
		c.SetIfUnchanged(fillCtx, key, value, s.cacheTTL, gen)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *ListingService) Create(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	item.ID = strings.TrimSpace(item.ID)
	item.IsActive = true
	if item.Type != domain.ListingTypeCar && item.TotalCapacity == 0 {
		item.TotalCapacity = item.Capacity
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &item); err != nil {
		return nil, err
	}

	s.invalidate(ctx, item.Type, item.ID)
	if s.notifier != nil {
		s.notifier.Publish(ctx, notifier.TopicListingCreated, notifier.ListingEvent{Type: item.Type, ID: item.ID, IsActive: true})
	}
	s.log.Info("listing created", zap.String("type", string(item.Type)), zap.String("id", item.ID))
	return &item, nil
}

// Deactivate hides a listing from reads and new reservations. Existing bookings keep it.
func (s *ListingService) Deactivate(ctx context.Context, typ domain.ListingType, id string) error {
	if err := s.repo.SetActive(ctx, typ, id, false); err != nil {
		return err
	}

	s.invalidate(ctx, typ, id)
	if s.notifier != nil {
		s.notifier.Publish(ctx, notifier.TopicListingDeactivated, notifier.ListingEvent{Type: typ, ID: id})
	}
	s.log.Info("listing deactivated", zap.String("type", string(typ)), zap.String("id", id))
	return nil
}

func (s *ListingService) invalidate(ctx context.Context, typ domain.ListingType, id string) {
	if s.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.cache.Invalidate(ctx, cache.ListingKey(typ, id)); err != nil {
		s.logStale(typ, id, err)
	}
	if err := s.cache.InvalidatePattern(ctx, cache.ListingsPrefix(typ)); err != nil {
		s.logStale(typ, id, err)
	}
}

func (s *ListingService) logStale(typ domain.ListingType, id string, err error) {
	s.log.Error("cache invalidation failed after commit",
		zap.String("listing", fmt.Sprintf("%s:%s", typ, id)),
		zap.Bool("stale_cache_risk", true),
		zap.Error(err),
	)
}

func (s *ListingService) reader() cache.Reader {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

var _ ListingUseCase = (*ListingService)(nil)
