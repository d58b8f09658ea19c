package bootstrap

import (
	"context"
	"time"

	"github.com/Domenick1991/travelbooking/api"
	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/notifier"
	"github.com/Domenick1991/travelbooking/internal/rabbitmq"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/retry"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/Domenick1991/travelbooking/internal/service/listings"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Deps holds the shared infrastructure and services both binaries run on.
type Deps struct {
	Pool     *pgxpool.Pool
	Cache    *cache.RedisCache
	Bookings *booking.BookingService
	Listings *listings.ListingService

	closers []func() error
}

func NewDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Deps, error) {
	if cfg.Database.MigrateOnStart {
		if err := repository.Migrate(ctx, cfg.Database.DSN()); err != nil {
			return nil, err
		}
		log.Info("database migrated")
	}

	pool, err := repository.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	d := &Deps{Pool: pool}
	d.closers = append(d.closers, func() error { pool.Close(); return nil })

	d.Cache = cache.NewRedisCache(cfg.Redis, log)
	d.closers = append(d.closers, d.Cache.Close)
	if err := d.Cache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, reads fall through to postgres", zap.Error(err))
	}

	pub, closePub := newPublisher(ctx, cfg, log)
	if closePub != nil {
		d.closers = append(d.closers, closePub)
	}

	events := notifier.New(pub, notifier.Config{
		BookingDestination:      cfg.Kafka.BookingEventsTopic,
		ListingDestination:      cfg.Kafka.ListingEventsTopic,
		NotificationDestination: cfg.Kafka.NotificationsTopic,
		Timeout:                 cfg.Events.PublishTimeout(),
	}, log)

	d.Bookings = booking.NewBookingService(
		repository.NewStore(pool, cfg.Database.LockTimeout()),
		repository.NewBookingRepository(pool),
		booking.WithCache(d.Cache, cfg.Redis.BookingsTTL()),
		booking.WithNotifier(events),
		booking.WithLogger(log),
		booking.WithRetry(RetryConfig(cfg.Booking)),
	)
	d.Listings = listings.NewListingService(
		repository.NewInventoryRepository(pool),
		d.Cache,
		events,
		cfg.Redis.ListingsTTL(),
		log,
	)
	return d, nil
}

// HealthChecks lists the dependencies a request cannot be served without.
func (d *Deps) HealthChecks() map[string]api.HealthCheck {
	return map[string]api.HealthCheck{
		"postgres": d.Pool.Ping,
	}
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func RetryConfig(cfg config.BookingConfig) retry.Config {
	rc := retry.DefaultConfig()
	rc.Attempts = cfg.RetryAttempts
	rc.InitialBackoff = time.Duration(cfg.RetryBackoffMillis) * time.Millisecond
	rc.MaxBackoff = time.Duration(cfg.RetryMaxBackoffMillis) * time.Millisecond
	return rc
}

// newPublisher returns a nil Publisher for the "none" transport. An unreachable
// broker is only logged: publishing is best effort and redials on later events.
func newPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (notifier.Publisher, func() error) {
	switch cfg.Events.Transport {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka unreachable, events will be dropped until it recovers", zap.Error(err))
		}
		return producer, producer.Close
	case "rabbitmq":
		publisher := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err := publisher.Connect(); err != nil {
			log.Warn("rabbitmq unreachable, events will be dropped until it recovers", zap.Error(err))
		}
		return publisher, publisher.Close
	default:
		log.Info("event publishing disabled")
		return nil, nil
	}
}
