package listings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/notifier"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) List(ctx context.Context, typ domain.ListingType, activeOnly bool) ([]domain.InventoryItem, error) {
	args := m.Called(ctx, typ, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InventoryItem), args.Error(1)
}

func (m *MockInventoryRepository) GetByID(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error) {
	args := m.Called(ctx, typ, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InventoryItem), args.Error(1)
}

func (m *MockInventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockInventoryRepository) SetActive(ctx context.Context, typ domain.ListingType, id string, active bool) error {
	return m.Called(ctx, typ, id, active).Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dst any) bool {
	return m.Called(ctx, key, dst).Bool(0)
}

func (m *MockCache) Generation(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SetIfUnchanged(ctx context.Context, key string, value any, ttl time.Duration, generation int64) bool {
	return m.Called(ctx, key, value, ttl, generation).Bool(0)
}

func (m *MockCache) Invalidate(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockCache) InvalidatePattern(ctx context.Context, prefix string) error {
	return m.Called(ctx, prefix).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, topic string, payload any) {
	m.Called(ctx, topic, payload)
}

func redisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewWithClient(client, nil), mr
}

func TestListingService_ListIsCached(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("List", mock.Anything, domain.ListingTypeHotel, true).
		Return([]domain.InventoryItem{{Type: domain.ListingTypeHotel, ID: "HT1", Capacity: 5, IsActive: true}}, nil).Once()
	rc, mr := redisCache(t)
	svc := NewListingService(repo, rc, nil, time.Minute, nil)

	for i := 0; i < 3; i++ {
		items, err := svc.List(context.Background(), domain.ListingTypeHotel)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 5, items[0].Capacity)
	}
	repo.AssertExpectations(t)
	assert.Equal(t, time.Minute, mr.TTL(cache.ListingsKey(domain.ListingTypeHotel, true)))
}

func TestListingService_ConcurrentGetLoadsOnce(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("GetByID", mock.Anything, domain.ListingTypeFlight, "FL1").
		Run(func(mock.Arguments) { time.Sleep(20 * time.Millisecond) }).
		Return(&domain.InventoryItem{Type: domain.ListingTypeFlight, ID: "FL1", Capacity: 2}, nil).Once()
	rc, _ := redisCache(t)
	svc := NewListingService(repo, rc, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := svc.Get(context.Background(), domain.ListingTypeFlight, "FL1")
			assert.NoError(t, err)
			assert.Equal(t, 2, item.Capacity)
		}()
	}
	wg.Wait()
	repo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestListingService_GetWithoutCache(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("GetByID", mock.Anything, domain.ListingTypeCar, "CR9").
		Return(nil, domain.ErrListingNotFound)
	svc := NewListingService(repo, nil, nil, time.Minute, nil)

	_, err := svc.Get(context.Background(), domain.ListingTypeCar, "CR9")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestListingService_CacheDownFallsThrough(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("List", mock.Anything, domain.ListingTypeCar, true).Return([]domain.InventoryItem{}, nil).Twice()
	rc, mr := redisCache(t)
	mr.Close()
	svc := NewListingService(repo, rc, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		items, err := svc.List(context.Background(), domain.ListingTypeCar)
		require.NoError(t, err)
		assert.Empty(t, items)
	}
	repo.AssertExpectations(t)
}

func TestListingService_CreateInvalidatesAndNotifies(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(it *domain.InventoryItem) bool {
		return it.ID == "HT2" && it.IsActive && it.TotalCapacity == 3
	})).Return(nil).Once()

	c := new(MockCache)
	c.On("Invalidate", mock.Anything, []string{"listing:HOTEL:HT2"}).Return(nil).Once()
	c.On("InvalidatePattern", mock.Anything, "listings:HOTEL:").Return(nil).Once()

	n := new(MockNotifier)
	n.On("Publish", mock.Anything, notifier.TopicListingCreated, notifier.ListingEvent{Type: domain.ListingTypeHotel, ID: "HT2", IsActive: true}).Once()

	svc := NewListingService(repo, c, n, time.Minute, nil)
	item, err := svc.Create(context.Background(), domain.InventoryItem{Type: domain.ListingTypeHotel, ID: " HT2 ", Capacity: 3, UnitPriceCents: 9000})
	require.NoError(t, err)
	assert.Equal(t, "HT2", item.ID)

	repo.AssertExpectations(t)
	c.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestListingService_CreateRejects(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrListingExists)
	svc := NewListingService(repo, nil, nil, time.Minute, nil)

	_, err := svc.Create(context.Background(), domain.InventoryItem{Type: domain.ListingTypeFlight, ID: "", Capacity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidListing)

	_, err = svc.Create(context.Background(), domain.InventoryItem{Type: domain.ListingTypeFlight, ID: "FL1", Capacity: 1})
	assert.ErrorIs(t, err, domain.ErrListingExists)
}

func TestListingService_Deactivate(t *testing.T) {
	repo := new(MockInventoryRepository)
	repo.On("SetActive", mock.Anything, domain.ListingTypeFlight, "FL1", false).Return(nil).Once()
	repo.On("SetActive", mock.Anything, domain.ListingTypeFlight, "FL404", false).Return(domain.ErrListingNotFound).Once()

	c := new(MockCache)
	c.On("Invalidate", mock.Anything, []string{"listing:FLIGHT:FL1"}).Return(errors.New("redis down"))
	c.On("InvalidatePattern", mock.Anything, "listings:FLIGHT:").Return(nil)

	n := new(MockNotifier)
	n.On("Publish", mock.Anything, notifier.TopicListingDeactivated, mock.Anything).Once()

	svc := NewListingService(repo, c, n, time.Minute, nil)
	require.NoError(t, svc.Deactivate(context.Background(), domain.ListingTypeFlight, "FL1"))
	assert.ErrorIs(t, svc.Deactivate(context.Background(), domain.ListingTypeFlight, "FL404"), domain.ErrListingNotFound)

	n.AssertExpectations(t)
	c.AssertNumberOfCalls(t, "Invalidate", 1)
}

// gatedRepo holds its first GetByID open until release is closed. The capacity
// is read before blocking, like a query snapshot taken ahead of a concurrent write.
type gatedRepo struct {
	repository.InventoryRepository

	capacity atomic.Int64
	loads    atomic.Int32
	started  chan struct{}
	release  chan struct{}
}

func newGatedRepo(capacity int64) *gatedRepo {
	r := &gatedRepo{started: make(chan struct{}), release: make(chan struct{})}
	r.capacity.Store(capacity)
	return r
}

func (r *gatedRepo) GetByID(ctx context.Context, typ domain.ListingType, id string) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{Type: typ, ID: id, Capacity: int(r.capacity.Load()), IsActive: true}
	if r.loads.Add(1) == 1 {
		close(r.started)
		<-r.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return item, nil
}

func TestListingService_ReadAfterInvalidationSeesNewCapacity(t *testing.T) {
	ctx := context.Background()
	repo := newGatedRepo(2)
	rc, _ := redisCache(t)
	svc := NewListingService(repo, rc, nil, time.Minute, nil)

	early := make(chan *domain.InventoryItem, 1)
	go func() {
		item, err := svc.Get(ctx, domain.ListingTypeFlight, "FL1")
		assert.NoError(t, err)
		early <- item
	}()
	<-repo.started

	// A reservation commits and invalidates while the first load is in flight.
	repo.capacity.Store(1)
	require.NoError(t, rc.Invalidate(ctx, cache.ListingKey(domain.ListingTypeFlight, "FL1")))

	late, err := svc.Get(ctx, domain.ListingTypeFlight, "FL1")
	require.NoError(t, err)
	assert.Equal(t, 1, late.Capacity)

	close(repo.release)
	assert.Equal(t, 2, (<-early).Capacity)

	cached, err := svc.Get(ctx, domain.ListingTypeFlight, "FL1")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Capacity)
	assert.Equal(t, int32(2), repo.loads.Load())
}

func TestListingService_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	repo := newGatedRepo(4)
	rc, _ := redisCache(t)
	svc := NewListingService(repo, rc, nil, time.Minute, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Get(firstCtx, domain.ListingTypeHotel, "HT1")
		firstDone <- err
	}()
	<-repo.started

	waiter := make(chan error, 1)
	go func() {
		item, err := svc.Get(context.Background(), domain.ListingTypeHotel, "HT1")
		if err == nil {
			assert.Equal(t, 4, item.Capacity)
		}
		waiter <- err
	}()

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(repo.release)

	assert.NoError(t, <-waiter)
	assert.NoError(t, <-firstDone)
	assert.Equal(t, int32(1), repo.loads.Load())
}
