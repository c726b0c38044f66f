package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// RetryConfig задаёт политику повторов транзакции при временных ошибках хранилища
// (serialization failure, deadlock, lock timeout). Бизнес-ошибки не повторяются.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
	}
}

// runTx выполняет fn внутри UnitOfWork, повторяя всю транзакцию целиком при
// transient-ошибках. fn обязана быть чистой функцией от tx: при повторе она
// выполняется заново поверх свежего состояния.
func (s *Service) runTx(ctx context.Context, op string, fn func(tx domain.Tx) error) error {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOpDuration(op, time.Since(start))
		}
	}()

	delay := s.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err := s.uow.WithinTx(ctx, fn)
		if err == nil {
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"op":      op,
					"attempt": attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if s.metrics != nil {
			s.metrics.RecordTxRollback()
		}
		if !domain.IsTransient(err) || attempt >= s.retry.MaxAttempts {
			return err
		}

		if s.metrics != nil {
			s.metrics.RecordTxRetry()
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("transient storage failure, retrying transaction")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
		if delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}

	return lastErr
}
