package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// flakyUnitOfWork падает transient-ошибкой заданное число раз, затем пропускает fn.
type flakyUnitOfWork struct {
	failures int
	calls    int
	err      error
}

func (f *flakyUnitOfWork) WithinTx(_ context.Context, fn func(tx domain.Tx) error) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return fn(nil)
}

func newRetryTestService(uow domain.UnitOfWork, cfg RetryConfig) *Service {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return NewServiceWithoutMetrics(uow, nil, logger.WithField("component", "checkout")).WithRetryConfig(cfg)
}

func fastRetryConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRunTx_RetriesTransientErrors(t *testing.T) {
	uow := &flakyUnitOfWork{
		failures: 2,
		err:      fmt.Errorf("commit tx: %w", domain.ErrStorageTransient),
	}
	svc := newRetryTestService(uow, fastRetryConfig(3))

	var ran bool
	err := svc.runTx(context.Background(), "test_op", func(domain.Tx) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, uow.calls)
}

func TestRunTx_ExhaustsAttempts(t *testing.T) {
	uow := &flakyUnitOfWork{
		failures: 10,
		err:      fmt.Errorf("begin tx: %w", domain.ErrStorageTransient),
	}
	svc := newRetryTestService(uow, fastRetryConfig(3))

	err := svc.runTx(context.Background(), "test_op", func(domain.Tx) error { return nil })

	assert.ErrorIs(t, err, domain.ErrStorageTransient)
	assert.Equal(t, 3, uow.calls)
}

func TestRunTx_DoesNotRetryBusinessErrors(t *testing.T) {
	uow := &flakyUnitOfWork{
		failures: 10,
		err:      fmt.Errorf("product %q: %w", "Espresso", domain.ErrInsufficientStock),
	}
	svc := newRetryTestService(uow, fastRetryConfig(5))

	err := svc.runTx(context.Background(), "test_op", func(domain.Tx) error { return nil })

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, uow.calls, "business errors must fail fast")
}

func TestRunTx_StopsOnContextCancel(t *testing.T) {
	uow := &flakyUnitOfWork{
		failures: 10,
		err:      fmt.Errorf("commit tx: %w", domain.ErrStorageTransient),
	}
	svc := newRetryTestService(uow, RetryConfig{
		MaxAttempts:   10,
		InitialDelay:  time.Hour, // retry заснёт, отмена контекста должна разбудить
		MaxDelay:      time.Hour,
		BackoffFactor: 1.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := svc.runTx(ctx, "test_op", func(domain.Tx) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
	assert.Equal(t, 1, uow.calls)
}

func TestWithRetryConfig_IgnoresInvalid(t *testing.T) {
	uow := &flakyUnitOfWork{}
	svc := newRetryTestService(uow, RetryConfig{MaxAttempts: 0})

	assert.Equal(t, DefaultRetryConfig().MaxAttempts, svc.retry.MaxAttempts)
}
