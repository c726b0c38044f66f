package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// state — снимок всех таблиц. Заказы хранятся без позиций, позиции — отдельной
// картой по ID, как строки order_items.
type state struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	items    map[string]domain.OrderItem
}

func newState() *state {
	return &state{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		items:    make(map[string]domain.OrderItem),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, p := range s.products {
		c.products[id] = p
	}
	for id, o := range s.orders {
		o.Items = nil
		c.orders[id] = o
	}
	for id, it := range s.items {
		c.items[id] = it
	}
	return c
}

// Store — in-memory реализация UnitOfWork для локальной разработки и тестов.
// Глобальный mutex сериализует транзакции; fn мутирует копию состояния,
// которая заменяет живое состояние только при успешном завершении. Частичные
// эффекты неудачной транзакции не видны никогда — как и у PostgreSQL-реализации.
type Store struct {
	mu     sync.Mutex
	state  *state
	outbox *outboxRepositoryInMemory
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		state:  newState(),
		outbox: NewOutboxRepository(),
	}
}

// Outbox возвращает in-memory outbox, наполняемый коммитами транзакций.
func (s *Store) Outbox() *outboxRepositoryInMemory {
	return s.outbox
}

// WithinTx выполняет fn над staged-копией состояния и публикует её атомарно.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	staged := s.state.clone()
	scope := &txScope{st: staged}
	if err := fn(scope); err != nil {
		// staged-копия просто отбрасывается: rollback.
		return err
	}

	s.state = staged
	for _, msg := range scope.pending {
		s.outbox.enqueue(msg)
	}
	return nil
}

// PutProduct кладёт товар напрямую, минуя транзакции (наполнение каталога в тестах/dev).
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.state.products[p.ID] = p
}

// GetProduct реализует domain.ProductReader.
func (s *Store) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return p, nil
}

// ListProducts реализует domain.ProductReader; порядок — по имени, как в каталоге.
func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]domain.Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

// txScope — транзакционный доступ к staged-состоянию.
type txScope struct {
	st      *state
	pending []domain.OutboxMessage
}

func (t *txScope) Ledger() domain.StockLedger {
	return &stockLedger{st: t.st}
}

func (t *txScope) Orders() domain.OrderStore {
	return &orderStore{st: t.st}
}

func (t *txScope) EnqueueEvent(_ context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	t.pending = append(t.pending, msg)
	return nil
}

var _ domain.UnitOfWork = (*Store)(nil)
var _ domain.ProductReader = (*Store)(nil)
var _ domain.Tx = (*txScope)(nil)
