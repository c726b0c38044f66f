package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес API заказов и склада.
	HTTPAddr string
	// MetricsAddr — адрес служебного HTTP: /metrics, /healthz, /livez.
	MetricsAddr string
	// DatabaseURL — DSN PostgreSQL. Пустое значение включает in-memory хранилище.
	DatabaseURL string
	// KafkaBrokers — список брокеров. Пустой список отключает публикацию событий.
	KafkaBrokers []string
	// EventsTopic переопределяет topic событий заказов; складские события
	// всегда уходят в свой topic.
	EventsTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// DefaultConfig возвращает значения по умолчанию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		OutboxPollInterval: 1 * time.Second,
		OutboxBatchSize:    100,
	}
}

// ReadConfig собирает конфигурацию из .env (если есть) и переменных окружения.
func ReadConfig() Config {
	// .env удобен для локальной разработки; в проде его просто нет.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Debug("skipping .env file")
	}

	cfg := DefaultConfig()
	if v := os.Getenv("POS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("POS_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("POS_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitBrokers(v)
	}
	if v := os.Getenv("POS_EVENTS_TOPIC"); v != "" {
		cfg.EventsTopic = v
	}
	if v := os.Getenv("POS_OUTBOX_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutboxPollInterval = d
		} else {
			log.WithField("value", v).Warn("invalid POS_OUTBOX_POLL_INTERVAL, using default")
		}
	}
	if v := os.Getenv("POS_OUTBOX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutboxBatchSize = n
		} else {
			log.WithField("value", v).Warn("invalid POS_OUTBOX_BATCH_SIZE, using default")
		}
	}
	return cfg
}

func splitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
