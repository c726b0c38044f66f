package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// unitOfWork реализует domain.UnitOfWork поверх PostgreSQL-транзакций.
// Read Committed достаточно: конфликтующие записи по одному товару
// сериализуются блокировкой строки (SELECT ... FOR UPDATE в StockLedger).
type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork создаёт PostgreSQL-реализацию UnitOfWork.
func NewUnitOfWork(store *Store) domain.UnitOfWork {
	return &unitOfWork{db: store.DB()}
}

func (u *unitOfWork) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classifyError("begin tx", err)
	}

	committed := false
	defer func() {
		// Rollback и при ошибке fn, и при panic внутри fn.
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&txScope{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classifyError("commit tx", err)
	}
	committed = true
	return nil
}

// txScope отдаёт регистр склада и хранилище заказов, привязанные к одной транзакции.
type txScope struct {
	tx *sql.Tx
}

func (t *txScope) Ledger() domain.StockLedger {
	return &stockLedger{tx: t.tx}
}

func (t *txScope) Orders() domain.OrderStore {
	return &orderStore{tx: t.tx}
}

// EnqueueEvent записывает доменное событие в outbox той же транзакцией,
// что и породившая его мутация: событие существует тогда и только тогда,
// когда закоммичена сама мутация.
func (t *txScope) EnqueueEvent(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload); err != nil {
		return classifyError("enqueue outbox event", err)
	}
	return nil
}

// classifyError переводит ошибки драйвера в доменную таксономию: serialization
// failure, deadlock, lock timeout и обрыв соединения помечаются как transient,
// чтобы вызывающая сторона могла повторить транзакцию целиком.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled (statement/lock timeout)
			return fmt.Errorf("%s: %s: %w", op, pgErr.Code, domain.ErrStorageTransient)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domain.ErrStorageTransient)
	}

	return fmt.Errorf("%s: %w", op, err)
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)
var _ domain.Tx = (*txScope)(nil)
