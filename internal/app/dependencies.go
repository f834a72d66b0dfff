package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-enricher/internal/cache"
	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/order-enricher/internal/health"
	"github.com/vladislavdragonenkov/order-enricher/internal/storage/memory"
	"github.com/vladislavdragonenkov/order-enricher/internal/storage/pebblestore"
	"github.com/vladislavdragonenkov/order-enricher/internal/storage/postgres"
)

// runtimeDependencies содержит хранилища и кэш, выбранные конфигурацией.
type runtimeDependencies struct {
	repo       domain.OrderRepository
	outboxRepo domain.OutboxRepository
	cache      domain.ReadCache
	checkers   map[string]healthcheck.Checker
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func (d *runtimeDependencies) addCloser(name string, fn func() error) {
	d.closers = append(d.closers, namedCloser{name: name, close: fn})
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.close(); err != nil {
			logger.WithError(err).WithField("resource", c.name).Warn("failed to close resource")
		}
	}
	d.closers = nil
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}
	if err := initStorage(ctx, cfg, logger, deps); err != nil {
		deps.close(logger)
		return nil, err
	}
	if err := initCache(ctx, cfg, logger, deps); err != nil {
		deps.close(logger)
		return nil, err
	}
	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		deps.repo = memory.NewOrderRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		logger.Info("using in-memory order store")
		return nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage requires dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		deps.addCloser("postgres", store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
		}

		deps.repo = postgres.NewOrderRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.checkers["storage"] = healthcheck.NewPingChecker("postgres", 0, store.Ping)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres order store")
		return nil

	case StorageDriverPebble:
		if strings.TrimSpace(cfg.PebbleDir) == "" {
			return fmt.Errorf("pebble storage requires directory")
		}
		store, err := pebblestore.Open(cfg.PebbleDir)
		if err != nil {
			return err
		}
		deps.addCloser("pebble", store.Close)

		deps.repo = pebblestore.NewOrderRepository(store)
		// Outbox у Pebble нет: события живут в памяти процесса до публикации.
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.checkers["storage"] = healthcheck.NewPingChecker("pebble", 0, store.Ping)
		logger.WithField("dir", cfg.PebbleDir).Info("using pebble order store")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initCache(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.CacheDriver))
	switch driver {
	case "", CacheDriverMemory:
		deps.cache = cache.NewMemory()
		return nil

	case CacheDriverRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return fmt.Errorf("redis cache requires address")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		deps.addCloser("redis", rdb.Close)

		redisCache := cache.NewRedis(rdb, cfg.RedisPrefix)
		// Недоступный Redis не мешает старту: чтения уйдут в хранилище.
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis is unreachable, reads will fall back to the store")
		}
		deps.cache = redisCache
		deps.checkers["cache"] = healthcheck.NewDegradedPingChecker("redis", 0, redisCache.Ping)
		logger.WithField("addr", cfg.RedisAddr).Info("using redis read cache")
		return nil

	default:
		return fmt.Errorf("unsupported cache driver %q", cfg.CacheDriver)
	}
}
