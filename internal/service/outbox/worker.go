package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	publishResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_outbox_publish_results_total",
		Help: "Outbox publish outcomes grouped by result (sent, retry_error, failed, dlq_failed).",
	}, []string{"result"})
	pendingBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_outbox_pending_records",
		Help: "Number of records waiting in the transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest record still pending in the outbox.",
	})
)

// Options задаёт параметры воркера. Нулевые поля заменяются значениями по
// умолчанию; RetryBaseDelay < 0 отключает паузы между попытками публикации.
type Options struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Worker вычитывает pending-записи из transactional outbox и публикует их в брокер.
// Доставка at-least-once: запись помечается sent только после успешной публикации.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	opts      Options
	logger    *log.Entry
}

// NewWorker создаёт воркер поверх outbox-репозитория и паблишера.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = defaultRetryBaseDelay
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}

	return &Worker{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// Run опрашивает outbox с заданным интервалом до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain обрабатывает один батч pending-записей.
func (w *Worker) Drain(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.reportBacklog()

	batch, err := w.repo.PullPending(w.opts.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox records")
		return
	}

	for _, record := range batch {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, record)
	}

	if len(batch) > 0 {
		w.reportBacklog()
	}
}

func (w *Worker) deliver(ctx context.Context, record domain.OutboxMessage) {
	recordLogger := w.logger.WithFields(log.Fields{
		"outbox_id":  record.ID,
		"event_type": record.EventType,
	})

	err := w.publishWithRetry(ctx, record)
	if err == nil {
		if markErr := w.repo.MarkSent(record.ID); markErr != nil {
			recordLogger.WithError(markErr).Warn("failed to mark outbox record as sent")
		}
		return
	}

	recordLogger.WithError(err).Error("outbox publish failed after retries")
	publishResults.WithLabelValues("failed").Inc()

	if dlqErr := w.sendToDLQ(record, err); dlqErr != nil {
		recordLogger.WithError(dlqErr).Warn("failed to publish outbox record to DLQ")
		publishResults.WithLabelValues("dlq_failed").Inc()
	}
	if markErr := w.repo.MarkFailed(record.ID); markErr != nil {
		recordLogger.WithError(markErr).Warn("failed to mark outbox record as failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, record domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		err := w.publisher.Publish(record)
		if err == nil {
			publishResults.WithLabelValues("sent").Inc()
			return nil
		}
		lastErr = err
		publishResults.WithLabelValues("retry_error").Inc()

		if attempt >= w.opts.MaxAttempts {
			break
		}

		delay := backoffDelay(w.opts.RetryBaseDelay, attempt)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", w.opts.MaxAttempts, lastErr)
}

func (w *Worker) reportBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingBacklog.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}

	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	oldestPendingAge.Set(age)
}

// sendToDLQ заворачивает запись вместе с ошибкой публикации и отправляет в DLQ.
func (w *Worker) sendToDLQ(record domain.OutboxMessage, publishErr error) error {
	if w.opts.DLQPublisher == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"outbox_id":        record.ID,
		"aggregate_type":   record.AggregateType,
		"aggregate_id":     record.AggregateID,
		"event_type":       record.EventType,
		"payload":          json.RawMessage(record.Payload),
		"publish_error":    publishErr.Error(),
		"dlq_published_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dlqRecord := record
	dlqRecord.Payload = payload
	if err := w.opts.DLQPublisher.Publish(dlqRecord); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

// backoffDelay удваивает base на каждую попытку после первой.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	const maxDelay = 30 * time.Second
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}
