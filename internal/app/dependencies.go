package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comanda/internal/storage/memory"
	"github.com/vladislavdragonenkov/comanda/internal/storage/postgres"
)

// Dependencies содержит собранные зависимости приложения: хранилище, каталог,
// outbox и (опционально) Kafka.
type Dependencies struct {
	UnitOfWork domain.UnitOfWork
	Products   domain.ProductReader
	OutboxRepo domain.OutboxRepository

	Publisher    domain.OutboxPublisher
	DLQPublisher domain.OutboxPublisher

	pgStore  *postgres.Store
	producer *kafka.Producer
	logger   *log.Entry
}

// NewDependencies строит зависимости по конфигурации. Пустой DatabaseURL включает
// in-memory хранилище, пустой список брокеров отключает публикацию событий —
// outbox при этом продолжает наполняться.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{logger: logger}

	if cfg.DatabaseURL == "" {
		store := memory.NewStore()
		deps.UnitOfWork = store
		deps.Products = store
		deps.OutboxRepo = store.Outbox()
		logger.Info("using in-memory storage")
	} else {
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		deps.pgStore = store
		deps.UnitOfWork = postgres.NewUnitOfWork(store)
		deps.Products = postgres.NewProductReader(store)
		deps.OutboxRepo = postgres.NewOutboxRepository(store)
		logger.Info("using postgres storage")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, events will stay in outbox")
		} else {
			deps.producer = producer
			deps.Publisher = kafka.NewEventPublisher(producer, cfg.EventsTopic)
			deps.DLQPublisher = kafka.NewDeadLetterPublisher(producer)
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	return deps, nil
}

// PingStorage проверяет доступность хранилища (для health-проб).
func (d *Dependencies) PingStorage(ctx context.Context) error {
	if d.pgStore == nil {
		return nil
	}
	return d.pgStore.Ping(ctx)
}

// Close освобождает ресурсы в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.pgStore != nil {
		if err := d.pgStore.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
