package domain

import "context"

// UnitOfWork предоставляет scoped-транзакцию поверх хранилища: begin → fn → commit,
// либо rollback, если fn вернула ошибку. Частичные эффекты fn никогда не видны снаружи.
type UnitOfWork interface {
	// WithinTx выполняет fn в рамках одной транзакции. Любая ошибка fn (включая
	// бизнес-ошибки вроде ErrInsufficientStock) откатывает все изменения.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx объединяет операции, доступные внутри одной транзакции.
type Tx interface {
	// Ledger возвращает складской регистр, привязанный к транзакции.
	Ledger() StockLedger
	// Orders возвращает хранилище заказов, привязанное к транзакции.
	Orders() OrderStore
	// EnqueueEvent кладёт доменное событие в transactional outbox той же транзакцией.
	EnqueueEvent(ctx context.Context, msg OutboxMessage) error
}

// StockLedger — складской регистр: единственный владелец остатков товара.
// Все мутации видимы другим операциям только после коммита объемлющей транзакции.
type StockLedger interface {
	// GetProductForUpdate читает товар с блокировкой строки до конца транзакции,
	// сериализуя конкурирующие операции над одним товаром.
	GetProductForUpdate(ctx context.Context, productID string) (Product, error)
	// Reserve списывает qty единиц со склада. Возвращает ErrInsufficientStock,
	// если остатка не хватает, и ErrInvalidQuantity при qty <= 0.
	Reserve(ctx context.Context, productID string, qty int32) error
	// Release возвращает qty единиц на склад (снятие позиции, компенсация).
	// Безопасна всегда: возвращает только ранее зарезервированные единицы.
	Release(ctx context.Context, productID string, qty int32) error
	// SetStock — административная установка остатка. ErrInvalidQuantity при stock < 0.
	SetStock(ctx context.Context, productID string, stock int32) error
}

// OrderStore описывает требования к хранилищу заказов и их позиций.
type OrderStore interface {
	// InsertOrder сохраняет новый заказ (без позиций).
	InsertOrder(ctx context.Context, order Order) error
	// GetOrder возвращает заказ вместе с позициями или ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (Order, error)
	// UpdateOrderTotal перезаписывает сумму заказа.
	UpdateOrderTotal(ctx context.Context, orderID string, totalMinor int64) error
	// InsertItem добавляет позицию заказа.
	InsertItem(ctx context.Context, item OrderItem) error
	// UpdateItem перезаписывает количество, сумму и комментарий позиции.
	UpdateItem(ctx context.Context, item OrderItem) error
	// DeleteItem удаляет позицию или возвращает ErrOrderItemNotFound.
	DeleteItem(ctx context.Context, orderID, itemID string) error
	// GetItem возвращает позицию заказа или ErrOrderItemNotFound.
	GetItem(ctx context.Context, orderID, itemID string) (OrderItem, error)
	// FindItemByProduct ищет позицию по паре (orderID, productID); ErrOrderItemNotFound,
	// если товара в заказе ещё нет.
	FindItemByProduct(ctx context.Context, orderID, productID string) (OrderItem, error)
	// ItemsForOrder возвращает все позиции заказа в порядке добавления.
	ItemsForOrder(ctx context.Context, orderID string) ([]OrderItem, error)
	// SumItemTotals пересчитывает сумму заказа по сохранённым позициям.
	// Источником правды считаются позиции, а не инкрементальные правки суммы.
	SumItemTotals(ctx context.Context, orderID string) (int64, error)
}

// ProductReader — read-only доступ к каталогу вне транзакций (списки, выдача наружу).
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}
